package refresh_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/auth/refresh"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/webtest"
)

func newRefresh(t *testing.T, backend *webtest.Backend) *fiber.App {
	t.Helper()

	cfg := webtest.NewConfig(backend.URL)
	app := webtest.NewApp()

	var s refresh.Service
	require.NoError(t, s.Init(app, cfg, webtest.NewDeps(t, cfg)))

	return app
}

func post(t *testing.T, app *fiber.App, cookies map[string]string) (*http.Response, refresh.Response) {
	t.Helper()

	resp, raw := webtest.Do(t, app, webtest.WithSession(httptest.NewRequest(fiber.MethodPost, refresh.Path, nil), cookies))

	var body refresh.Response
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))

	return resp, body
}

func TestRefreshMissingTokens(t *testing.T) {
	backend := webtest.NewBackend(t, nil)
	app := newRefresh(t, backend)

	for _, cookies := range []map[string]string{
		nil,
		{session.CookieAccessToken: "t1"},
		{session.CookieRefreshToken: "r1"},
	} {
		resp, body := post(t, app, cookies)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.False(t, body.Success)
		assert.Empty(t, resp.Cookies())
	}

	assert.Zero(t, backend.Count())
}

func TestRefreshRotatesCookies(t *testing.T) {
	refreshExp := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)

	backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK,
		`{"token":"t2","refreshToken":"r2","refreshTokenExpiryTime":"`+refreshExp.Format(time.RFC3339)+`"}`))
	app := newRefresh(t, backend)

	before := time.Now()
	resp, body := post(t, app, webtest.Authenticated())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	cookies := webtest.Cookies(resp)
	require.Len(t, cookies, 4)
	assert.NotContains(t, cookies, session.CookieTenant)
	assert.Equal(t, "t2", cookies[session.CookieAccessToken].Value)
	assert.Equal(t, "r2", cookies[session.CookieRefreshToken].Value)
	assert.True(t, refreshExp.Equal(cookies[session.CookieRefreshToken].Expires))
	assert.Equal(t, session.FormatTime(refreshExp), cookies[session.CookieRefreshExpiresAt].Value)

	accessExp := cookies[session.CookieAccessToken].Expires
	assert.WithinDuration(t, before.Add(14*time.Minute), accessExp, 5*time.Second)

	call := backend.Last(t)
	assert.Equal(t, "/api/v1/identity/token/refresh", call.Path)
	assert.Equal(t, "acme", call.Header.Get("tenant"))
	assert.Equal(t, "no-store", call.Header.Get("Cache-Control"))
	assert.JSONEq(t, `{"token":"t1","refreshToken":"r1"}`, string(call.Body))
}

func TestRefreshUsesJWTExpiry(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK, `{"token":"`+token+`","refreshToken":"r2"}`))

	resp, _ := post(t, newRefresh(t, backend), webtest.Authenticated())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, exp.Equal(webtest.Cookies(resp)[session.CookieAccessToken].Expires))
}

func TestRefreshStaleTokenFailsCleanly(t *testing.T) {
	var (
		mu   sync.Mutex
		used = map[string]bool{}
	)

	backend := webtest.NewBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)

		mu.Lock()
		defer mu.Unlock()

		if used[in["refreshToken"]] {
			webtest.JSON(http.StatusUnauthorized, `{"message":"Invalid refresh token"}`)(w, r)

			return
		}

		used[in["refreshToken"]] = true
		webtest.JSON(http.StatusOK, `{"token":"t2","refreshToken":"r2"}`)(w, r)
	})

	app := newRefresh(t, backend)

	resp, body := post(t, app, webtest.Authenticated())
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	resp, body = post(t, app, webtest.Authenticated())
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid refresh token", body.Message)
	assert.Empty(t, resp.Cookies())
	assert.Equal(t, 2, backend.Count())
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	backend := webtest.NewBackend(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		webtest.JSON(http.StatusOK, `{"token":"t2","refreshToken":"r2"}`)(w, r)
	})

	app := newRefresh(t, backend)

	const callers = 5

	var wg sync.WaitGroup

	results := make([]*http.Response, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			req := webtest.WithSession(httptest.NewRequest(fiber.MethodPost, refresh.Path, nil), webtest.Authenticated())

			resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
			if err == nil {
				_ = resp.Body.Close()
			}

			results[i] = resp
		}()
	}

	wg.Wait()

	for _, resp := range results {
		require.NotNil(t, resp)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "r2", webtest.Cookies(resp)[session.CookieRefreshToken].Value)
	}

	assert.Equal(t, 1, backend.Count())
}

func TestRefreshUnreachable(t *testing.T) {
	backend := webtest.NewBackend(t, nil)
	app := newRefresh(t, backend)
	backend.Close()

	resp, body := post(t, app, webtest.Authenticated())
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Contains(t, body.Hint, backend.URL)
	assert.Empty(t, resp.Cookies())
}
