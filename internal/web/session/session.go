// Package session reads and writes the browser session cookies of the console.
//
// A session is the token pair issued by the upstream identity API plus the
// tenant it was issued for. Tokens are kept in HttpOnly cookies, the expiry
// instants and the tenant in cookies readable by page scripts.
package session

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// Cookie names.
const (
	CookieAccessToken      = "access_token"
	CookieRefreshToken     = "refresh_token"
	CookieAccessExpiresAt  = "access_expires_at"
	CookieRefreshExpiresAt = "refresh_expires_at"
	CookieTenant           = "tenant"

	// CookiePath is the path of all session cookies.
	CookiePath = "/"

	// TimeFormat is RFC3339 with millisecond precision, always in UTC.
	TimeFormat = "2006-01-02T15:04:05.000Z"
)

// Names lists every session cookie.
var Names = []string{
	CookieAccessToken,
	CookieRefreshToken,
	CookieAccessExpiresAt,
	CookieRefreshExpiresAt,
	CookieTenant,
}

// Session is the token state of one browser.
type Session struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	Tenant                string
}

// Valid reports whether both tokens are present.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Read loads the session from the request cookies.
// An absent tenant cookie resolves to defaultTenant.
func Read(c fiber.Ctx, defaultTenant string) Session {
	s := Session{
		AccessToken:  c.Cookies(CookieAccessToken),
		RefreshToken: c.Cookies(CookieRefreshToken),
		Tenant:       c.Cookies(CookieTenant),
	}

	s.AccessTokenExpiresAt, _ = ParseTime(c.Cookies(CookieAccessExpiresAt))
	s.RefreshTokenExpiresAt, _ = ParseTime(c.Cookies(CookieRefreshExpiresAt))

	if s.Tenant == "" {
		s.Tenant = defaultTenant
	}

	return s
}

// FormatTime renders t in the cookie time format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses an RFC3339 instant, fractional seconds are optional.
func ParseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}

	return t.UTC(), true
}

// Cookies writes session cookies to fiber responses.
type Cookies struct {
	// Secure marks every cookie Secure, false in dev mode only.
	Secure bool
}

// NewCookies returns a cookie writer, devMode disables the Secure flag.
func NewCookies(devMode bool) *Cookies {
	return &Cookies{Secure: !devMode}
}

func (w *Cookies) set(c fiber.Ctx, name, value string, httpOnly bool, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     CookiePath,
		Expires:  expires,
		Secure:   w.Secure,
		HTTPOnly: httpOnly,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Issue writes all five cookies of a freshly issued session.
// The tenant cookie lives as long as the refresh token.
func (w *Cookies) Issue(c fiber.Ctx, s Session) {
	w.Rotate(c, s)
	w.set(c, CookieTenant, s.Tenant, false, s.RefreshTokenExpiresAt)
}

// Rotate rewrites the token and expiry cookies, the tenant cookie is left as is.
// The access expiry never exceeds the refresh expiry.
func (w *Cookies) Rotate(c fiber.Ctx, s Session) {
	s.AccessTokenExpiresAt = Clamp(s.AccessTokenExpiresAt, s.RefreshTokenExpiresAt)

	w.set(c, CookieAccessToken, s.AccessToken, true, s.AccessTokenExpiresAt)
	w.set(c, CookieRefreshToken, s.RefreshToken, true, s.RefreshTokenExpiresAt)
	w.set(c, CookieAccessExpiresAt, FormatTime(s.AccessTokenExpiresAt), false, s.AccessTokenExpiresAt)
	w.set(c, CookieRefreshExpiresAt, FormatTime(s.RefreshTokenExpiresAt), false, s.RefreshTokenExpiresAt)
}

// Clear expires every session cookie regardless of the request state.
func (w *Cookies) Clear(c fiber.Ctx) {
	for _, name := range Names {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     CookiePath,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   w.Secure,
			HTTPOnly: name == CookieAccessToken || name == CookieRefreshToken,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

// Clamp returns access, or limit when access is later than a non zero limit.
func Clamp(access, limit time.Time) time.Time {
	if !limit.IsZero() && access.After(limit) {
		return limit
	}

	return access
}
