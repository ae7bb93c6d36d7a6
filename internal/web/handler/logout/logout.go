// Package logout clears the session cookies.
package logout

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
)

const (
	// APIPath is the logout endpoint of the api.
	APIPath = handler.APIPrefix + "/auth/logout"

	// Path is the browser logout link, it redirects to the login page.
	Path = "/auth/logout"
)

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	s.cfg = cfg
	s.deps = deps

	app.Post(APIPath, s.Post)
	app.Get(Path, s.Get)

	return nil
}

// Post expires all session cookies, it never fails.
func (s *Service) Post(c fiber.Ctx) error {
	s.clear(c)

	return c.JSON(proxy.OKResponse{OK: true})
}

// Get expires all session cookies and redirects to the login page.
func (s *Service) Get(c fiber.Ctx) error {
	s.clear(c)

	return c.Redirect().To(login.Path)
}

func (s *Service) clear(c fiber.Ctx) {
	logger.Logout(s.deps.Proxy.Session(c).Tenant)
	s.deps.Cookies.Clear(c)
}
