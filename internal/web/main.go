// Package web assembles the fiber application of the admin console.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/gofiber/template/html/v3"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	accesslog "github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger/adapter/fiber"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/admin/group"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/admin/role"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/admin/user"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/auth/password"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/auth/refresh"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/logout"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/profile"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/limiter"
	authmiddleware "github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/middleware/auth"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

// ErrNilConfig is returned by New without configuration.
var ErrNilConfig = errors.New("config cannot be nil")

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	limiter      *limiter.Limiter
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan error, 1)

	s.alive.Store(true)

	go func() {
		err := s.App.Listen(addr, fiber.ListenConfig{DisableStartupMessage: !s.cfg.DevMode})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			doneFiber <- pkgerrors.Wrap(err, "fiber listen")

			return
		}

		doneFiber <- nil
	}()

	return <-doneFiber // wait for fiber to stop
}

// WaitShutdown waits for a termination signal and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown lets checkalive fail for the configured time, then stops the server.
func (s *Service) Shutdown() {
	// graceful shutdown for reverse proxies: checkalive returns 503 first
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("")
	}

	if err := s.limiter.Close(); err != nil {
		log.Error().Err(err).Msg("")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// Alive reports whether checkalive answers 200.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	up, err := upstream.New(cfg.Upstream)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create upstream client")
	}

	loginLimiter, err := limiter.New(cfg.RateLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create login limiter")
	}

	cookies := session.NewCookies(cfg.DevMode)

	deps := &handler.Deps{
		Proxy:   proxy.New(up),
		Cookies: cookies,
		Rotator: session.NewRotator(up, cookies, cfg.Session),
	}

	if loginLimiter != nil {
		deps.LoginLimiter = loginLimiter.Handler
	}

	templateEngine := html.NewFileSystem(http.FS(subFS(embeddedTemplates, "templates")), ".gohtml")

	// in dev mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.Reload(true)

		log.Warn().Msg("dev mode enabled: using local filesystem for templates, cookies are not secure")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Immutable:      true,
			Views:          templateEngine,
			ErrorHandler:   proxy.ErrorHandler,
			BodyLimit:      handler.BodyLimit,
		},
	)

	service := &Service{
		cfg:     cfg,
		App:     app,
		limiter: loginLimiter,
	}
	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recoverer.New(recoverer.Config{EnableStackTrace: cfg.DevMode}))
	}

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: cfg.Webserver.CheckAlivePath,
	}))

	// serve embedded static files
	app.Get("/static*", static.New("", static.Config{FS: subFS(embeddedStaticFiles, "static")}))

	if cfg.Webserver.CheckAlivePath != "" {
		app.Get(cfg.Webserver.CheckAlivePath, service.checkAlive)
	}

	if cfg.Webserver.MetricsPath != "" {
		app.Get(cfg.Webserver.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Use(authmiddleware.New(authmiddleware.Config{
		Rotator:       deps.Rotator,
		DefaultTenant: cfg.Upstream.DefaultTenant,
		Public:        []string{cfg.Webserver.CheckAlivePath, cfg.Webserver.MetricsPath},
	}))

	for _, h := range []handler.Service{
		&login.Handler,
		&logout.Handler,
		&refresh.Handler,
		&password.Handler,
		&profile.Handler,
		&user.Handler,
		&role.Handler,
		&group.Handler,
	} {
		if err = h.Init(app, cfg, deps); err != nil {
			return nil, pkgerrors.Wrap(err, "init handler")
		}
	}

	app.Get(handler.RootPath, func(c fiber.Ctx) error {
		if session.Read(c, cfg.Upstream.DefaultTenant).Valid() {
			return c.Redirect().To(profile.Path)
		}

		return c.Redirect().To(login.Path)
	})

	return service, nil
}

func (s *Service) checkAlive(c fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.SendString("OK")
}
