package user_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/admin/user"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/webtest"
)

func TestRoutes(t *testing.T) {
	backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK, `{"ok":true}`))
	cfg := webtest.NewConfig(backend.URL)

	app := webtest.NewApp()

	var s user.Service
	require.NoError(t, s.Init(app, cfg, webtest.NewDeps(t, cfg)))

	tests := []struct {
		method   string
		target   string
		body     string
		upstream string
	}{
		{fiber.MethodGet, "/api/admin/users?search=bob", "", "/api/v1/identity/users"},
		{fiber.MethodPost, "/api/admin/users", `{"email":"bob@example.com"}`, "/api/v1/identity/users"},
		{fiber.MethodGet, "/api/admin/users/42", "", "/api/v1/identity/users/42"},
		{fiber.MethodPut, "/api/admin/users/42", `{"firstName":"Bob"}`, "/api/v1/identity/users/42"},
		{fiber.MethodDelete, "/api/admin/users/42", "", "/api/v1/identity/users/42"},
		{fiber.MethodPost, "/api/admin/users/42/toggle-status", "", "/api/v1/identity/users/42/toggle-status"},
		{fiber.MethodGet, "/api/admin/users/42/roles", "", "/api/v1/identity/users/42/roles"},
		{fiber.MethodPost, "/api/admin/users/42/roles", `{"roles":["admin"]}`, "/api/v1/identity/users/42/roles"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := webtest.Do(t, app, webtest.WithSession(req, webtest.Authenticated()))
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)

			call := backend.Last(t)
			assert.Equal(t, tt.method, call.Method)
			assert.Equal(t, tt.upstream, call.Path)
			assert.Equal(t, "Bearer t1", call.Header.Get("Authorization"))
			assert.Equal(t, "acme", call.Header.Get("tenant"))

			if tt.body != "" {
				assert.JSONEq(t, tt.body, string(call.Body))
			}
		})
	}

	assert.Equal(t, "search=bob", backend.Calls()[0].Query)
}

func TestRoutesRequireAccessToken(t *testing.T) {
	backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK, `[]`))
	cfg := webtest.NewConfig(backend.URL)

	app := webtest.NewApp()

	var s user.Service
	require.NoError(t, s.Init(app, cfg, webtest.NewDeps(t, cfg)))

	for _, r := range user.Routes {
		target := user.Path + strings.NewReplacer(":id", "7").Replace(r.Path)

		resp, body := webtest.Do(t, app, httptest.NewRequest(r.Method, target, nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, target)
		assert.JSONEq(t, `{"message":"Not authenticated"}`, string(body))
	}

	assert.Zero(t, backend.Count())
}
