// Package role forwards the admin role api to the identity API.
package role

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
)

const (
	// Path is the base path for role management.
	Path = handler.AdminPrefix + "/roles"

	// UpstreamPath is the role collection of the identity API.
	UpstreamPath = "/identity/roles"
)

// Routes of the role api.
var Routes = []handler.Route{
	{Method: fiber.MethodGet, Path: "/", Upstream: UpstreamPath, Action: "Failed to fetch roles"},
	{Method: fiber.MethodPost, Path: "/", Upstream: UpstreamPath, Action: "Failed to save role"},
	{Method: fiber.MethodGet, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to fetch role"},
	{Method: fiber.MethodDelete, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to delete role"},
	{
		Method: fiber.MethodGet, Path: "/:id/permissions",
		Upstream: UpstreamPath + "/:id/permissions", Action: "Failed to fetch role permissions",
	},
	{
		Method: fiber.MethodPut, Path: "/:id/permissions",
		Upstream: UpstreamPath + "/:id/permissions", Action: "Failed to update role permissions",
	},
}

// Service registers the role routes.
type Service struct {
	handler.Service
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	handler.Register(app.Group(Path), deps.Proxy, Routes)

	return nil
}
