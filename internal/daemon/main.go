// Package daemon wires configuration, logging and the web service of the console.
package daemon

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web"
)

// ErrNilConfig is returned by New without configuration.
var ErrNilConfig = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Addr is the listen address of the web service.
func (d *Daemon) Addr() string {
	return fmt.Sprintf(":%d", d.cfg.Webserver.Port)
}

// Start runs the web service until a termination signal stopped it.
func (d *Daemon) Start() error {
	done := make(chan error, 1)

	go func() {
		done <- d.webService.Start(d.Addr())
	}()

	go d.webService.WaitShutdown()

	log.Info().
		Str("addr", d.Addr()).
		Str("upstream", d.cfg.Upstream.BaseURL).
		Str("tenant", d.cfg.Upstream.DefaultTenant).
		Bool("devMode", d.cfg.DevMode).
		Msg("web service started")

	return <-done
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := logger.Init(cfg.Log); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	webService, err := web.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create web service")
	}

	return &Daemon{
		cfg:        cfg,
		webService: webService,
	}, nil
}
