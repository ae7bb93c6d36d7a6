// Package config reads the service configuration from etc/main.toml, the environment
// and an optional JSON override.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of all environment overrides, e.g. GO_IDENTITY_ADMIN_DEVMODE.
	EnvPrefix = "GO_IDENTITY_ADMIN"

	// EnvConfigJSON holds a JSON document merged over the file configuration.
	EnvConfigJSON = EnvPrefix + "_CONFIG_JSON"

	// DefaultUpstreamURL is the local development backend.
	DefaultUpstreamURL = "http://localhost:5030"

	// DefaultTenant is used whenever no tenant was chosen.
	DefaultTenant = "root"
)

// ReadConfig from config file.
// A missing main.toml is not an error, the defaults are meant for local development.
func ReadConfig(path string) (Config, error) {
	var (
		c   Config
		err error
	)

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("main")
	v.SetConfigType("toml")
	v.AddConfigPath(path)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "failed to read main config file")
		}
	}

	// override it from env
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names kept compatible with existing deployments
	_ = v.BindEnv("upstream.baseurl", EnvPrefix+"_UPSTREAM_BASEURL", "BACKEND_API_BASE_URL")
	_ = v.BindEnv("upstream.defaulttenant", EnvPrefix+"_UPSTREAM_DEFAULTTENANT", "BACKEND_TENANT")

	if configAsJSON := os.Getenv(EnvConfigJSON); configAsJSON != "" {
		if err = decodeAndMergeConfig(v, configAsJSON); err != nil {
			return Config{}, err
		}
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("devmode", false)
	v.SetDefault("title", "GoIdentity-Admin")

	v.SetDefault("webserver.port", 8080) //nolint:mnd
	v.SetDefault("webserver.url", "http://localhost:8080")
	v.SetDefault("webserver.shutdowntime", 5) //nolint:mnd
	v.SetDefault("webserver.disablerecover", false)
	v.SetDefault("webserver.metricspath", "/metrics")
	v.SetDefault("webserver.checkalivepath", "/checkalive")

	v.SetDefault("upstream.baseurl", DefaultUpstreamURL)
	v.SetDefault("upstream.apiprefix", "/api/v1")
	v.SetDefault("upstream.defaulttenant", DefaultTenant)
	v.SetDefault("upstream.timeout", 30*time.Second)      //nolint:mnd
	v.SetDefault("upstream.logintimeout", 15*time.Second) //nolint:mnd
	v.SetDefault("upstream.profileimageencoding", "multipart")

	v.SetDefault("session.accesstokenlifetime", 14*time.Minute)     //nolint:mnd
	v.SetDefault("session.refreshtokenlifetime", 7*24*time.Hour) //nolint:mnd

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.max", 10) //nolint:mnd
	v.SetDefault("ratelimit.expiration", time.Minute)
	v.SetDefault("ratelimit.storage", "memory")
	v.SetDefault("ratelimit.db.table", "login_limiter")

	v.SetDefault("log.loglevel", "info")
	v.SetDefault("log.appname", "go-identity-admin")
	v.SetDefault("log.servicename", "web")
	v.SetDefault("log.console.enabled", true)
	v.SetDefault("log.console.useconsolewriter", false)
	v.SetDefault("log.enableaccesslogtoconsole", true)
	v.SetDefault("log.disablecheckalive", true)
}

func decodeAndMergeConfig(v *viper.Viper, configAsJSON string) error {
	v.SetConfigType("json")

	if err := v.MergeConfig(strings.NewReader(configAsJSON)); err != nil {
		return errors.Wrap(err, "failed to merge json config override")
	}

	return nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the settings the service can not start without and
// fills in defaults for optional ones.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	// validate webserver listening port
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Upstream.BaseURL == "" {
		return errors.Wrap(ErrEmptyUpstreamURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = 5 // set default of 5 seconds
	}

	if c.Upstream.DefaultTenant == "" {
		c.Upstream.DefaultTenant = DefaultTenant
	}

	if c.Upstream.ProfileImageEncoding == "" {
		c.Upstream.ProfileImageEncoding = "multipart"
	}

	if c.RateLimit.Storage == "" {
		c.RateLimit.Storage = "memory"
	}

	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, invalidErrMessage)
	}

	return nil
}
