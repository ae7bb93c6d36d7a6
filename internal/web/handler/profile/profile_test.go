package profile_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/login"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/handler/profile"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/webtest"
)

func newApp(t *testing.T, backend *webtest.Backend, mutate ...func(*config.Config)) *fiber.App {
	t.Helper()

	cfg := webtest.NewConfig(backend.URL)
	for _, m := range mutate {
		m(cfg)
	}

	app := webtest.NewApp()

	var s profile.Service
	require.NoError(t, s.Init(app, cfg, webtest.NewDeps(t, cfg)))

	return app
}

func imagePayload(t *testing.T, data []byte, contentType string, extra map[string]any) string {
	t.Helper()

	payload := map[string]any{
		"firstName":   "Ada",
		"lastName":    "Lovelace",
		"phoneNumber": "",
		"image": profile.FileUpload{
			FileName:    "avatar.png",
			ContentType: contentType,
			Data:        data,
		},
	}

	for k, v := range extra {
		payload[k] = v
	}

	out, err := json.Marshal(payload)
	require.NoError(t, err)

	return string(out)
}

func update(t *testing.T, app *fiber.App, body string) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodPut, profile.APIPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, raw := webtest.Do(t, app, webtest.WithSession(req, webtest.Authenticated()))

	return resp, string(raw)
}

func TestUpdateImageRoundTrip(t *testing.T) {
	backend := webtest.NewBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	data := make([]byte, 4097)
	for i := range data {
		data[i] = byte(i % 251)
	}

	resp, body := update(t, newApp(t, backend), imagePayload(t, data, "image/png", map[string]any{"deleteCurrentImage": false}))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, body)

	call := backend.Last(t)
	assert.Equal(t, fiber.MethodPut, call.Method)
	assert.Equal(t, "/api/v1/identity/profile", call.Path)

	mediaType, params, err := mime.ParseMediaType(call.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	form, err := multipart.NewReader(bytes.NewReader(call.Body), params["boundary"]).ReadForm(10 << 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada"}, form.Value["firstName"])
	assert.Equal(t, []string{""}, form.Value["phoneNumber"])
	assert.Equal(t, []string{"false"}, form.Value["deleteCurrentImage"])
	assert.NotContains(t, form.Value, "image")

	require.Len(t, form.File["image"], 1)
	fh := form.File["image"][0]
	assert.Equal(t, "avatar.png", fh.Filename)
	assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
	assert.Equal(t, int64(len(data)), fh.Size)

	f, err := fh.Open()
	require.NoError(t, err)

	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUpdateJSONEncoding(t *testing.T) {
	backend := webtest.NewBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	app := newApp(t, backend, func(c *config.Config) { c.Upstream.ProfileImageEncoding = "json" })

	body := imagePayload(t, []byte{1, 2, 3}, "image/gif", nil)

	resp, _ := update(t, app, body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	call := backend.Last(t)
	assert.Equal(t, "application/json", call.Header.Get("Content-Type"))
	assert.JSONEq(t, body, string(call.Body))
}

func TestUpdateWithoutImageIsJSON(t *testing.T) {
	backend := webtest.NewBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, _ := update(t, newApp(t, backend), `{"firstName":"Ada","image":null}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", backend.Last(t).Header.Get("Content-Type"))
}

func TestUpdateValidation(t *testing.T) {
	backend := webtest.NewBackend(t, nil)
	app := newApp(t, backend)

	tests := map[string]string{
		"too large":         imagePayload(t, make([]byte, profile.MaxImageSize+1), "image/png", nil),
		"wrong type":        imagePayload(t, []byte{1}, "application/pdf", nil),
		"upload and delete": imagePayload(t, []byte{1}, "image/png", map[string]any{"deleteCurrentImage": true}),
		"not json":          `{"firstName":`,
		"bad byte value":    `{"image":{"fileName":"a.png","contentType":"image/png","data":[1,256]}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			resp, raw := update(t, app, body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, raw, profile.MsgInvalidRequest)
		})
	}

	assert.Zero(t, backend.Count())
}

func TestUpdateRequiresToken(t *testing.T) {
	backend := webtest.NewBackend(t, nil)

	req := httptest.NewRequest(fiber.MethodPut, profile.APIPath, strings.NewReader(`{}`))
	resp, _ := webtest.Do(t, newApp(t, backend), req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, backend.Count())
}

func TestByteArrayAcceptsBase64(t *testing.T) {
	var f profile.FileUpload
	require.NoError(t, json.Unmarshal([]byte(`{"fileName":"a","contentType":"image/png","data":"AQID"}`), &f))
	assert.Equal(t, profile.ByteArray{1, 2, 3}, f.Data)

	out, err := json.Marshal(f.Data)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(out))
}

func TestMe(t *testing.T) {
	backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK, `{"id":"u1","userName":"ada"}`))

	req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.MePath, nil), webtest.Authenticated())
	resp, body := webtest.Do(t, newApp(t, backend), req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"u1","userName":"ada"}`, string(body))
	assert.Equal(t, "/api/v1/identity/profile", backend.Last(t).Path)
}

func TestPage(t *testing.T) {
	t.Run("renders profile", func(t *testing.T) {
		backend := webtest.NewBackend(t, webtest.JSON(http.StatusOK, `{"id":"u1"}`))

		req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.Path, nil), webtest.Authenticated())
		resp, body := webtest.Do(t, newApp(t, backend), req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, profile.Template, string(body))
	})

	t.Run("no session", func(t *testing.T) {
		backend := webtest.NewBackend(t, nil)

		resp, _ := webtest.Do(t, newApp(t, backend), httptest.NewRequest(fiber.MethodGet, profile.Path, nil))
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, login.Path, resp.Header.Get("Location"))
		assert.Zero(t, backend.Count())
	})

	t.Run("expired token and rejected refresh", func(t *testing.T) {
		backend := webtest.NewBackend(t, webtest.JSON(http.StatusUnauthorized, ``))

		req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.Path, nil), webtest.Authenticated())
		resp, _ := webtest.Do(t, newApp(t, backend), req)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, login.ExpiredPath, resp.Header.Get("Location"))

		calls := backend.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "/api/v1/identity/profile", calls[0].Path)
		assert.Equal(t, "/api/v1/identity/token/refresh", calls[1].Path)
	})

	t.Run("stale token is rotated and fetch retried", func(t *testing.T) {
		backend := webtest.NewBackend(t, rotatingIdentity(t))

		req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.Path, nil), webtest.Authenticated())
		resp, body := webtest.Do(t, newApp(t, backend), req)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, profile.Template, string(body))

		cookies := webtest.Cookies(resp)
		assert.Equal(t, "t2", cookies["access_token"].Value)
		assert.Equal(t, "r2", cookies["refresh_token"].Value)

		calls := backend.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "Bearer t1", calls[0].Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/identity/token/refresh", calls[1].Path)
		assert.Equal(t, "Bearer t2", calls[2].Header.Get("Authorization"))
	})

	t.Run("refresh token only", func(t *testing.T) {
		backend := webtest.NewBackend(t, rotatingIdentity(t))

		req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.Path, nil), map[string]string{
			"refresh_token": "r1",
			"tenant":        "acme",
		})
		resp, body := webtest.Do(t, newApp(t, backend), req)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, profile.Template, string(body))

		calls := backend.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "/api/v1/identity/token/refresh", calls[0].Path)
		assert.Equal(t, "Bearer t2", calls[1].Header.Get("Authorization"))
		assert.Equal(t, "acme", calls[1].Header.Get("tenant"))
	})

	t.Run("upstream error shown", func(t *testing.T) {
		backend := webtest.NewBackend(t, webtest.JSON(http.StatusForbidden, `{"message":"Account disabled"}`))

		req := webtest.WithSession(httptest.NewRequest(fiber.MethodGet, profile.Path, nil), webtest.Authenticated())
		resp, body := webtest.Do(t, newApp(t, backend), req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Account disabled")
	})
}

// rotatingIdentity accepts only access token t2 and rotates r1 into t2/r2.
func rotatingIdentity(t *testing.T) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/identity/token/refresh":
			webtest.JSON(http.StatusOK, `{"token":"t2","refreshToken":"r2"}`)(w, r)
		case r.Header.Get("Authorization") == "Bearer t2":
			webtest.JSON(http.StatusOK, `{"id":"u1"}`)(w, r)
		default:
			webtest.JSON(http.StatusUnauthorized, ``)(w, r)
		}
	}
}
