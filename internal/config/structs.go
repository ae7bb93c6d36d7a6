package config

import (
	"time"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development, disables secure cookies
	Title     string
	Log       logger.Log
	Webserver Webserver
	Upstream  Upstream
	Session   Session
	RateLimit RateLimit
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool   // disable recover middleware
	Port           int    `validate:"min=1,max=65535"` // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown in seconds
	URL            string `validate:"required,url"` // base url for the webserver
	MetricsPath    string // path of the prometheus endpoint, empty disables it
	CheckAlivePath string // path of the load balancer health check
}

// Upstream holds the settings of the identity backend all proxy routes talk to.
type Upstream struct {
	BaseURL       string        `validate:"required,url"`
	APIPrefix     string        // versioned path prefix, e.g. /api/v1
	DefaultTenant string        `validate:"required"`
	Timeout       time.Duration // timeout of a single upstream call, 0 uses the platform default
	LoginTimeout  time.Duration `validate:"gt=0"`

	// ProfileImageEncoding selects how a profile update carrying an image is sent upstream.
	ProfileImageEncoding string `validate:"oneof=multipart json"`
}

// Session settings.
type Session struct {
	// AccessTokenLifetime is assumed when neither the upstream response nor the
	// access token itself carries an expiry.
	AccessTokenLifetime time.Duration `validate:"gt=0"`

	// RefreshTokenLifetime is used when the upstream omits the refresh token expiry.
	RefreshTokenLifetime time.Duration `validate:"gt=0,gtefield=AccessTokenLifetime"`
}

// RateLimit configures throttling of login attempts per client IP.
type RateLimit struct {
	Enabled    bool
	Max        int           `validate:"required_if=Enabled true"`
	Expiration time.Duration `validate:"required_if=Enabled true"`
	Storage    string        `validate:"oneof=memory postgres mysql"`
	DB         DB
}

// DB holds the database settings of the rate limit storage.
type DB struct {
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Table    string
}
