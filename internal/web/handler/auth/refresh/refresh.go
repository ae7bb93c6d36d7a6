// Package refresh rotates the session token pair.
//
// Concurrent requests carrying the same refresh token share one upstream
// call through session.Rotator and all receive the rotated cookies. A stale
// refresh token is answered with 401 and leaves the cookies untouched.
package refresh

import (
	"github.com/gofiber/fiber/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

const (
	// Path of the refresh endpoint.
	Path = handler.APIPrefix + "/auth/refresh"

	// MsgMissingToken is the details of a refresh without tokens.
	MsgMissingToken = "Missing access or refresh token"

	// MsgRefreshFailed is the details of a rejected refresh.
	MsgRefreshFailed = "Token refresh failed"
)

// Response is the body of the refresh endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// Service is the refresh handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the refresh handler.
var Handler = Service{}

// Init registers the refresh route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	s.cfg = cfg
	s.deps = deps

	app.Post(Path, s.Post)

	return nil
}

// Post exchanges the refresh token for a rotated pair.
func (s *Service) Post(c fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")

	current := s.deps.Proxy.Session(c)
	if !current.Valid() {
		session.ObserveRefresh(session.OutcomeMissing)

		return c.Status(fiber.StatusUnauthorized).JSON(Response{
			Message: proxy.MsgNotAuthenticated,
			Details: MsgMissingToken,
		})
	}

	if _, err := s.deps.Rotator.Rotate(c, current); err != nil {
		return fail(c, err)
	}

	return c.JSON(Response{Success: true})
}

func fail(c fiber.Ctx, err error) error {
	var (
		statusErr   *upstream.StatusError
		unreachable *upstream.UnreachableError
	)

	switch {
	case errors.As(err, &statusErr):
		return c.Status(fiber.StatusUnauthorized).JSON(Response{
			Message: statusErr.Message,
			Details: MsgRefreshFailed,
		})
	case errors.As(err, &unreachable):
		return c.Status(fiber.StatusBadGateway).JSON(Response{
			Message: proxy.MsgUpstreamUnavailable,
			Details: MsgRefreshFailed,
			Hint:    unreachable.Hint(),
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(Response{
			Message: errors.Cause(err).Error(),
			Details: MsgRefreshFailed,
		})
	}
}
