package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

// Deps are the shared collaborators of all handlers.
type Deps struct {
	Proxy   *proxy.Proxy
	Cookies *session.Cookies
	Rotator *session.Rotator

	// LoginLimiter guards the login route, nil disables it.
	LoginLimiter fiber.Handler
}

// Valid reports whether the required collaborators are set.
func (d *Deps) Valid() bool {
	return d != nil && d.Proxy != nil && d.Cookies != nil && d.Rotator != nil
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, deps *Deps) error
}
