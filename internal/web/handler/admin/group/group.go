// Package group forwards the admin group api to the identity API.
package group

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
)

const (
	// Path is the base path for group management.
	Path = handler.AdminPrefix + "/groups"

	// UpstreamPath is the group collection of the identity API.
	UpstreamPath = "/identity/groups"

	membersPath = "/:id/members"
)

// Routes of the group api.
var Routes = []handler.Route{
	{Method: fiber.MethodGet, Path: "/", Upstream: UpstreamPath, Action: "Failed to fetch groups"},
	{Method: fiber.MethodPost, Path: "/", Upstream: UpstreamPath, Action: "Failed to create group"},
	{Method: fiber.MethodGet, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to fetch group"},
	{Method: fiber.MethodPut, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to update group"},
	{Method: fiber.MethodDelete, Path: "/:id", Upstream: UpstreamPath + "/:id", Action: "Failed to delete group"},
	{Method: fiber.MethodGet, Path: membersPath, Upstream: UpstreamPath + membersPath, Action: "Failed to fetch group members"},
	{Method: fiber.MethodPost, Path: membersPath, Upstream: UpstreamPath + membersPath, Action: "Failed to add group members"},
	{
		Method: fiber.MethodDelete, Path: membersPath + "/:userId",
		Upstream: UpstreamPath + membersPath + "/:userId", Action: "Failed to remove group member",
	},
}

// Service registers the group routes.
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
