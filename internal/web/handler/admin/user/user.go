// Package user forwards the admin user api to the identity API.
package user

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
)

const (
	// Path is the base path for user management.
	Path = handler.AdminPrefix + "/users"

	// UpstreamPath is the user collection of the identity API.
	UpstreamPath = "/identity/users"
)

// Routes of the user api.
var Routes = []handler.Route{
	{Method: fiber.MethodGet, Path: "/", Upstream: UpstreamPath, Action: "Failed to fetch users"},
	{Method: fiber.MethodPost, Path: "/", Upstream: UpstreamPath, Action: "Failed to create user"},
	{Method: fiber.MethodGet, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to fetch user"},
	{Method: fiber.MethodPut, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to update user"},
	{Method: fiber.MethodDelete, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to delete user"},
	{
		Method: fiber.MethodPost, Path: "/:id/toggle-status",
		Upstream: UpstreamPath + "/:id/toggle-status", Action: "Failed to toggle user status",
	},
	{Method: fiber.MethodGet, Path: "/:id/roles", Upstream: UpstreamPath + "/:id/roles", Action: "Failed to fetch user roles"},
	{Method: fiber.MethodPost, Path: "/:id/roles", Upstream: UpstreamPath + "/:id/roles", Action: "Failed to assign roles"},
}

// Service registers the user routes.
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
