package client_test

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/client"
)

func TestFileJarPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cookies.json")
	base, err := url.Parse("http://console.local")
	require.NoError(t, err)

	jar, err := client.NewFileJar(path, base)
	require.NoError(t, err)

	jar.SetCookies(base, []*http.Cookie{
		{Name: "access_token", Value: "t1", Path: "/", Expires: time.Now().Add(time.Hour)},
		{Name: "tenant", Value: "acme", Path: "/"},
	})

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := client.NewFileJar(path, base)
	require.NoError(t, err)

	v, err := reloaded.Value("tenant")
	require.NoError(t, err)
	assert.Equal(t, "acme", v)
	assert.Len(t, reloaded.Cookies(base), 2)

	reloaded.SetCookies(base, []*http.Cookie{{Name: "access_token", Value: "", Path: "/", MaxAge: -1}})

	_, err = reloaded.Value("access_token")
	assert.ErrorIs(t, err, client.ErrUnknownCookie)

	require.NoError(t, reloaded.Clear())
	assert.Empty(t, reloaded.Cookies(base))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileJarSkipsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"access_token","value":"old","expires":"2000-01-01T00:00:00Z"}]`), 0o600))

	base, _ := url.Parse("http://console.local")

	jar, err := client.NewFileJar(path, base)
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(base))
}
