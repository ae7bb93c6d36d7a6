// Package password forwards password changes of the signed in user.
package password

import (
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/validate"
)

const (
	// Path of the change password endpoint.
	Path = handler.APIPrefix + "/auth/change-password"

	// UpstreamPath of the identity API.
	UpstreamPath = "/identity/change-password"

	// MsgInvalidRequest is sent when the payload fails validation.
	MsgInvalidRequest = "Invalid request body"

	action = "Failed to change password"
)

// Request is the change password payload.
type Request struct {
	Password           string `json:"password"           validate:"required"`
	NewPassword        string `json:"newPassword"        validate:"required,min=8,nefield=Password"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

// Service is the change password handler service.
type Service struct {
	handler.Service
	deps *handler.Deps
}

// Handler is the change password handler.
var Handler = Service{}

// Init registers the route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	s.deps = deps

	app.Post(Path, s.Post)

	return nil
}

// Post validates the payload before it is forwarded.
func (s *Service) Post(c fiber.Ctx) error {
	if s.deps.Proxy.Session(c).AccessToken == "" {
		return proxy.Error(c, fiber.StatusUnauthorized, proxy.MsgNotAuthenticated, "")
	}

	var req Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return proxy.Error(c, fiber.StatusBadRequest, MsgInvalidRequest, err.Error())
	}

	if err := validate.Default.Struct(req); err != nil {
		logger.PasswordChange(false, err.Error())

		return proxy.Error(c, fiber.StatusBadRequest, MsgInvalidRequest, err.Error())
	}

	err := s.deps.Proxy.Forward(c, proxy.Target{
		Method:   fiber.MethodPost,
		Path:     UpstreamPath,
		Action:   action,
		WrapText: true,
	})

	status := c.Response().StatusCode()
	logger.PasswordChange(status < fiber.StatusBadRequest, http.StatusText(status))

	return err
}
