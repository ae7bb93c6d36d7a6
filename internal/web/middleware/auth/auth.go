package auth

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

// HomePath is where an authenticated visitor of the login page is sent.
const HomePath = "/profile"

// DefaultPublic are path prefixes served without a session.
var DefaultPublic = []string{handler.APIPrefix, "/static", "/auth"}

// Config of the page guard.
type Config struct {
	// Rotator renews a session whose access token cookie expired, nil disables renewal.
	Rotator *session.Rotator

	// DefaultTenant is used for sessions without tenant cookie.
	DefaultTenant string

	// Public are additional path prefixes served without a session.
	Public []string
}

// New returns the page guard. Requests below one of the public prefixes pass
// through, the same origin api answers 401 on its own.
func New(cfg Config) fiber.Handler {
	prefixes := make([]string, 0, len(DefaultPublic)+len(cfg.Public))
	prefixes = append(prefixes, DefaultPublic...)

	for _, p := range cfg.Public {
		if p != "" {
			prefixes = append(prefixes, strings.ToLower(p))
		}
	}

	return func(c fiber.Ctx) error {
		hasToken := c.Cookies(session.CookieAccessToken) != ""

		if IsLoginPage(c) {
			if hasToken && c.Query("expired") != "true" {
				return c.Redirect().To(HomePath)
			}

			return c.Next()
		}

		if isPublic(c.Path(), prefixes) || hasToken {
			return c.Next()
		}

		if c.Cookies(session.CookieRefreshToken) == "" || cfg.Rotator == nil {
			return c.Redirect().To(login.Path)
		}

		if _, err := cfg.Rotator.Rotate(c, session.Read(c, cfg.DefaultTenant)); err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("page session renewal failed")

			return c.Redirect().To(login.ExpiredPath)
		}

		return c.Next()
	}
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c fiber.Ctx) bool {
	return c.Method() == fiber.MethodGet && strings.EqualFold(c.Path(), login.Path)
}

func isPublic(path string, prefixes []string) bool {
	path = strings.ToLower(path)

	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}

	return false
}
