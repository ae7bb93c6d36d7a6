// Package login serves the login page and exchanges credentials for session cookies.
package login

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/validate"
)

const (
	// Path is the path to the login page.
	Path = "/auth/login"

	// APIPath is the credential exchange endpoint.
	APIPath = handler.APIPrefix + "/auth/login"

	// ExpiredPath is the login page with the session expired notice.
	ExpiredPath = Path + "?expired=true"

	// Template of the login page.
	Template = "login"
)

// Request is the login payload.
type Request struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
	Tenant   string `json:"tenant"`
}

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
	now  func() time.Time
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	s.cfg = cfg
	s.deps = deps
	s.now = time.Now

	app.Get(Path, s.Get)

	if deps.LoginLimiter != nil {
		app.Post(APIPath, deps.LoginLimiter, s.Post)
	} else {
		app.Post(APIPath, s.Post)
	}

	return nil
}

// Get handles the login page rendering.
func (s *Service) Get(c fiber.Ctx) error {
	bind := fiber.Map{
		"title":  s.cfg.Title,
		"tenant": s.cfg.Upstream.DefaultTenant,
	}

	if c.Query("expired") == "true" {
		bind["notice"] = MsgExpiredNotice
	}

	return c.Render(Template, bind, handler.BaseLayout)
}

// Post exchanges credentials for a token pair and issues the session cookies.
func (s *Service) Post(c fiber.Ctx) error {
	var req Request

	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return proxy.Error(c, fiber.StatusBadRequest, proxy.MsgInvalidJSON, err.Error())
	}

	req.Email = strings.TrimSpace(req.Email)

	if err := validate.Default.Struct(req); err != nil {
		return proxy.Error(c, fiber.StatusBadRequest, MsgCredentialsRequired, err.Error())
	}

	tenant := s.tenant(c, req.Tenant)

	ctx, cancel := context.WithTimeout(c.Context(), s.cfg.Upstream.LoginTimeout)
	defer cancel()

	pair, err := s.deps.Proxy.Upstream().IssueToken(ctx, tenant, requestid.FromContext(c), upstream.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		logger.LoginAttempt(req.Email, tenant, false, err.Error())

		return s.fail(c, err)
	}

	sess := session.Build(session.Tokens{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}, tenant, s.cfg.Session, s.now())

	s.deps.Cookies.Issue(c, sess)
	logger.LoginAttempt(req.Email, tenant, true, "")

	return c.JSON(proxy.OKResponse{OK: true})
}

// tenant resolves the body tenant, then the tenant header, then the default.
func (s *Service) tenant(c fiber.Ctx, requested string) string {
	if t := strings.TrimSpace(requested); t != "" {
		return t
	}

	if t := strings.TrimSpace(c.Get(upstream.HeaderTenant)); t != "" {
		return t
	}

	return s.cfg.Upstream.DefaultTenant
}

func (s *Service) fail(c fiber.Ctx, err error) error {
	var (
		statusErr   *upstream.StatusError
		unreachable *upstream.UnreachableError
	)

	switch {
	case errors.As(err, &statusErr):
		message := statusErr.Message
		if statusErr.StatusCode == fiber.StatusUnauthorized {
			message = MsgInvalidCredentials
		}

		return proxy.Error(c, statusErr.StatusCode, message, string(statusErr.Body))
	case errors.Is(err, context.DeadlineExceeded):
		return proxy.Error(c, fiber.StatusGatewayTimeout, MsgTimeout, "")
	case errors.As(err, &unreachable):
		log.Error().Err(err).Msg("login upstream unreachable")

		return c.Status(fiber.StatusBadGateway).JSON(proxy.ErrorResponse{
			Message: MsgAuthError,
			Details: unreachable.Err.Error(),
			Hint:    unreachable.Hint(),
		})
	case errors.Is(err, upstream.ErrTokenResponseMissing):
		return proxy.Error(c, fiber.StatusBadGateway, MsgTokenMissing, "")
	default:
		log.Error().Err(err).Msg("login failed")

		return proxy.Error(c, fiber.StatusBadGateway, MsgTokenMissing, err.Error())
	}
}
