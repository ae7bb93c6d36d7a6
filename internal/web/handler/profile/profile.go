// Package profile serves the signed in user's profile api and page.
package profile

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

const (
	// MePath returns the profile of the signed in user.
	MePath = handler.APIPrefix + "/me"

	// APIPath updates the profile of the signed in user.
	APIPath = handler.APIPrefix + "/profile"

	// Path is the profile page.
	Path = "/profile"

	// UpstreamPath of the identity API.
	UpstreamPath = "/identity/profile"

	// Template of the profile page.
	Template = "profile"

	// EncodingMultipart sends profile updates with an image as multipart/form-data.
	EncodingMultipart = "multipart"

	// MsgInvalidRequest is sent for undecodable or invalid payloads.
	MsgInvalidRequest = "Invalid request body"
)

// Service is the profile handler service.
type Service struct {
	handler.Service
	cfg  *config.Config
	deps *handler.Deps
}

// Handler is the profile handler.
var Handler = Service{}

// Init registers the profile routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, deps *handler.Deps) error {
	if app == nil || cfg == nil || !deps.Valid() {
		log.Fatal().Msg(handler.ErrNilDepsFatalLogMsg)

		return nil
	}

	s.cfg = cfg
	s.deps = deps

	app.Get(MePath, s.Me)
	app.Put(APIPath, s.Update)
	app.Get(Path, s.Page)

	return nil
}

// Me returns the current profile.
func (s *Service) Me(c fiber.Ctx) error {
	return s.deps.Proxy.Forward(c, proxy.Target{
		Method: fiber.MethodGet,
		Path:   UpstreamPath,
		Action: "Failed to fetch profile",
	})
}

// Update forwards a profile update, re-encoding an embedded image when configured.
func (s *Service) Update(c fiber.Ctx) error {
	if s.deps.Proxy.Session(c).AccessToken == "" {
		return proxy.Error(c, fiber.StatusUnauthorized, proxy.MsgNotAuthenticated, "")
	}

	payload, err := ParsePayload(c.Body())
	if err != nil {
		return proxy.Error(c, fiber.StatusBadRequest, MsgInvalidRequest, err.Error())
	}

	if err = payload.Validate(); err != nil {
		logger.ProfileUpdate(payload.FieldNames(), false, err.Error())

		return proxy.Error(c, fiber.StatusBadRequest, MsgInvalidRequest, err.Error())
	}

	target := proxy.Target{
		Method: fiber.MethodPut,
		Path:   UpstreamPath,
		Action: "Failed to update profile",
	}

	if payload.Image != nil && s.cfg.Upstream.ProfileImageEncoding == EncodingMultipart {
		if target.Body, target.ContentType, err = payload.Multipart(); err != nil {
			return proxy.Error(c, fiber.StatusBadRequest, MsgInvalidRequest, err.Error())
		}
	}

	err = s.deps.Proxy.Forward(c, target)

	status := c.Response().StatusCode()
	logger.ProfileUpdate(payload.FieldNames(), status < fiber.StatusBadRequest, string(c.Response().Body()))

	return err
}

// Page renders the profile page. A session rejected by the identity API is
// rotated once and the fetch retried, an unrecoverable session goes back to
// the login page.
func (s *Service) Page(c fiber.Ctx) error {
	sess := s.deps.Proxy.Session(c)
	if sess.AccessToken == "" && sess.RefreshToken == "" {
		return c.Redirect().To(login.Path)
	}

	var (
		resp *upstream.Response
		err  error
	)

	if sess.AccessToken != "" {
		resp, err = s.fetch(c, sess)
	}

	if sess.AccessToken == "" || (err == nil && resp.StatusCode == fiber.StatusUnauthorized) {
		if sess, err = s.deps.Rotator.Rotate(c, sess); err != nil {
			log.Debug().Err(err).Msg("profile page session renewal failed")

			return c.Redirect().To(login.ExpiredPath)
		}

		resp, err = s.fetch(c, sess)
	}

	bind := fiber.Map{
		"title":  s.cfg.Title,
		"tenant": sess.Tenant,
	}

	switch {
	case err != nil:
		log.Error().Err(err).Msg("profile page upstream call failed")

		bind["error"] = proxy.MsgUpstreamUnavailable
	case resp.StatusCode == fiber.StatusUnauthorized:
		return c.Redirect().To(login.ExpiredPath)
	case !resp.OK():
		bind["error"] = resp.Message()
	default:
		var user map[string]any
		if err = json.Unmarshal(resp.Body, &user); err != nil {
			bind["error"] = "Invalid profile response"
		}

		bind["user"] = user
	}

	return c.Render(Template, bind, handler.BaseLayout)
}

func (s *Service) fetch(c fiber.Ctx, sess session.Session) (*upstream.Response, error) {
	return s.deps.Proxy.Upstream().Do(c.Context(), upstream.Request{
		Path:      UpstreamPath,
		Token:     sess.AccessToken,
		Tenant:    sess.Tenant,
		RequestID: requestid.FromContext(c),
	})
}
