// Package webtest holds helpers shared by the web handler tests.
package webtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/proxy"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

// Call is one request received by a Backend.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Backend is a mocked identity API recording every call.
type Backend struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []Call
	handler http.HandlerFunc
}

// NewBackend starts a mocked identity API, closed on test cleanup.
func NewBackend(t *testing.T, h http.HandlerFunc) *Backend {
	t.Helper()

	b := &Backend{handler: h}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.calls = append(b.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		b.mu.Unlock()

		if b.handler != nil {
			b.handler(w, r)
		}
	}))
	t.Cleanup(b.Close)

	return b
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Call(nil), b.calls...)
}

// Count returns the number of recorded calls.
func (b *Backend) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.calls)
}

// Last returns the latest call.
func (b *Backend) Last(t *testing.T) Call {
	t.Helper()

	calls := b.Calls()
	require.NotEmpty(t, calls, "backend received no call")

	return calls[len(calls)-1]
}

// JSON answers with status and body.
func JSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// NewConfig returns a config pointing at baseURL.
func NewConfig(baseURL string) *config.Config {
	return &config.Config{
		DevMode: false,
		Title:   "test",
		Webserver: config.Webserver{
			URL:            "http://localhost",
			Port:           3000,
			CheckAlivePath: "/checkalive",
		},
		Upstream: config.Upstream{
			BaseURL:              baseURL,
			APIPrefix:            "/api/v1",
			DefaultTenant:        "root",
			Timeout:              5 * time.Second,
			LoginTimeout:         time.Second,
			ProfileImageEncoding: "multipart",
		},
		Session: config.Session{
			AccessTokenLifetime:  14 * time.Minute,
			RefreshTokenLifetime: 7 * 24 * time.Hour,
		},
	}
}

// NewDeps builds handler dependencies for cfg.
func NewDeps(t *testing.T, cfg *config.Config) *handler.Deps {
	t.Helper()

	up, err := upstream.New(cfg.Upstream)
	require.NoError(t, err)

	cookies := session.NewCookies(cfg.DevMode)

	return &handler.Deps{
		Proxy:   proxy.New(up),
		Cookies: cookies,
		Rotator: session.NewRotator(up, cookies, cfg.Session),
	}
}

// NewApp returns a fiber app with the api error handler and test views.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: proxy.ErrorHandler,
		Views:        NoOpViews{},
		BodyLimit:    handler.BodyLimit,
	})
}

// NoOpViews renders the template name followed by the "error" and "notice" binds.
type NoOpViews struct{}

// Load implements fiber.Views.
func (NoOpViews) Load() error { return nil }

// Render implements fiber.Views.
func (NoOpViews) Render(w io.Writer, name string, data any, _ ...string) error {
	_, _ = io.WriteString(w, name)

	if m, ok := data.(fiber.Map); ok {
		for _, key := range []string{"error", "notice"} {
			if v, exists := m[key].(string); exists && v != "" {
				_, _ = io.WriteString(w, "\n"+v)
			}
		}
	}

	return nil
}

// Do runs req against app and returns the response with its body.
func Do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, body
}

// WithSession adds the given session cookies to req.
func WithSession(req *http.Request, cookies map[string]string) *http.Request {
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	return req
}

// Cookies indexes the Set-Cookie headers of resp by name.
func Cookies(resp *http.Response) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}

	return out
}

// Authenticated is a session cookie set with tokens and tenant acme.
func Authenticated() map[string]string {
	return map[string]string{
		session.CookieAccessToken:  "t1",
		session.CookieRefreshToken: "r1",
		session.CookieTenant:       "acme",
	}
}
