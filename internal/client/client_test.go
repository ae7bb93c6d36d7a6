package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/client"
)

// console fakes the same origin api: /api/me answers 200 only for access token t2.
type console struct {
	me        atomic.Int32
	refreshes atomic.Int32

	refreshStatus int
	refreshDelay  time.Duration
	refreshTenant string
	gate          func(n int32)

	mu     sync.Mutex
	bodies []string
	tenant []string
}

func (s *console) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case client.RefreshPath:
		s.refreshes.Add(1)

		if s.refreshDelay > 0 {
			time.Sleep(s.refreshDelay)
		}

		if s.refreshStatus != 0 {
			w.WriteHeader(s.refreshStatus)
			_, _ = io.WriteString(w, `{"success":false,"message":"refresh rejected"}`)

			return
		}

		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "t2", Path: "/"})

		if s.refreshTenant != "" {
			http.SetCookie(w, &http.Cookie{Name: client.CookieTenant, Value: s.refreshTenant, Path: "/"})
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	default:
		n := s.me.Add(1)

		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.tenant = append(s.tenant, r.Header.Get("tenant"))
		s.mu.Unlock()

		if s.gate != nil {
			s.gate(n)
		}

		if ck, err := r.Cookie("access_token"); err != nil || ck.Value != "t2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Not authenticated"}`)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"email":"a@b.com"}`)
	}
}

func newConsole(t *testing.T, s *console) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(srv.Close)

	return srv
}

func newClient(t *testing.T, url string, expired chan string) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		BaseURL: url,
		Tenant:  "acme",
		OnSessionExpired: func(redirect string) {
			if expired != nil {
				expired <- redirect
			}
		},
	})
	require.NoError(t, err)

	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := client.New(client.Config{BaseURL: "/api"})
	assert.ErrorIs(t, err, client.ErrBaseURL)
}

func TestRefreshOnceAndRetryOnce(t *testing.T) {
	s := &console{}
	srv := newConsole(t, s)
	expired := make(chan string, 1)
	c := newClient(t, srv.URL, expired)

	req, err := c.NewRequest(context.Background(), http.MethodPost, "/api/profile", strings.NewReader(`{"firstName":"Ada"}`))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.EqualValues(t, 2, s.me.Load())
	assert.Equal(t, []string{`{"firstName":"Ada"}`, `{"firstName":"Ada"}`}, s.bodies)
	assert.Equal(t, []string{"acme", "acme"}, s.tenant)

	select {
	case <-expired:
		t.Fatal("unexpected session expiry")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRetryFollowsRefreshedTenant(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{name: "tenant from cookie", want: []string{"acme", "beta"}},
		{name: "tenant set by caller", header: "explicit", want: []string{"explicit", "explicit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &console{refreshTenant: "beta"}
			srv := newConsole(t, s)
			c := newClient(t, srv.URL, nil)

			req, err := c.NewRequest(context.Background(), http.MethodGet, "/api/me", nil)
			require.NoError(t, err)

			if tt.header != "" {
				req.Header.Set(client.HeaderTenant, tt.header)
			}

			resp, err := c.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, s.tenant)
		})
	}
}

func TestRefreshFailureSchedulesExpiry(t *testing.T) {
	s := &console{refreshStatus: http.StatusUnauthorized}
	srv := newConsole(t, s)
	expired := make(chan string, 1)
	c := newClient(t, srv.URL, expired)

	req, err := c.NewRequest(context.Background(), http.MethodGet, client.MePath, nil)
	require.NoError(t, err)

	start := time.Now()

	resp, err := c.Do(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Not authenticated"}`, string(body))
	assert.EqualValues(t, 1, s.me.Load())
	assert.EqualValues(t, 1, s.refreshes.Load())

	select {
	case redirect := <-expired:
		assert.Equal(t, client.ExpiredRedirect, redirect)
		assert.GreaterOrEqual(t, time.Since(start), client.DefaultExpiryDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("session expiry was not scheduled")
	}
}

func TestExpireImmediately(t *testing.T) {
	s := &console{refreshStatus: http.StatusUnauthorized}
	srv := newConsole(t, s)

	var redirects []string

	c, err := client.New(client.Config{
		BaseURL:          srv.URL,
		ExpiryDelay:      client.ExpireImmediately,
		OnSessionExpired: func(redirect string) { redirects = append(redirects, redirect) },
	})
	require.NoError(t, err)

	req, err := c.NewRequest(context.Background(), http.MethodGet, client.MePath, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{client.ExpiredRedirect}, redirects)
}

func TestSkipAuthRefresh(t *testing.T) {
	s := &console{}
	srv := newConsole(t, s)
	c := newClient(t, srv.URL, nil)

	req, err := c.NewRequest(context.Background(), http.MethodGet, client.MePath, nil)
	require.NoError(t, err)

	resp, err := c.Do(req, client.SkipAuthRefresh())
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, s.refreshes.Load())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 5

	release := make(chan struct{})
	s := &console{refreshDelay: 100 * time.Millisecond}
	s.gate = func(n int32) {
		switch {
		case n == callers:
			close(release)
		case n < callers:
			<-release
		}
	}

	srv := newConsole(t, s)
	c := newClient(t, srv.URL, nil)

	var wg sync.WaitGroup

	codes := make([]int, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			req, err := c.NewRequest(context.Background(), http.MethodGet, client.MePath, nil)
			if err != nil {
				return
			}

			resp, err := c.Do(req)
			if err != nil {
				return
			}

			codes[i] = resp.StatusCode
			_ = resp.Body.Close()
		}()
	}

	wg.Wait()

	assert.EqualValues(t, 1, s.refreshes.Load())
	assert.EqualValues(t, 2*callers, s.me.Load())

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestNetworkErrorIsNotRetried(t *testing.T) {
	s := &console{}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	srv.Close()

	expired := make(chan string, 1)
	c := newClient(t, srv.URL, expired)

	req, err := c.NewRequest(context.Background(), http.MethodGet, client.MePath, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)

	select {
	case <-expired:
		t.Fatal("network errors must not expire the session")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCancelledContextDoesNotExpire(t *testing.T) {
	s := &console{refreshDelay: 300 * time.Millisecond}
	srv := newConsole(t, s)
	expired := make(chan string, 1)
	c := newClient(t, srv.URL, expired)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := c.NewRequest(ctx, http.MethodGet, client.MePath, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	select {
	case <-expired:
		t.Fatal("cancelled requests must not expire the session")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestDefaultHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
	)

	got := func() http.Header {
		mu.Lock()
		defer mu.Unlock()

		return headers
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()

		if r.URL.Path == "/tenant" {
			http.SetCookie(w, &http.Cookie{Name: client.CookieTenant, Value: "beta", Path: "/"})
		}
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL, nil)

	send := func(path string, mutate func(*http.Request)) {
		req, err := c.NewRequest(context.Background(), http.MethodPost, path, strings.NewReader("x"))
		require.NoError(t, err)

		if mutate != nil {
			mutate(req)
		}

		resp, err := c.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	send("/a", nil)
	assert.Equal(t, "acme", got().Get("tenant"))
	assert.Equal(t, "application/json", got().Get("Content-Type"))

	send("/b", func(r *http.Request) {
		r.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		r.Header.Set("tenant", "explicit")
	})
	assert.Equal(t, "explicit", got().Get("tenant"))
	assert.Equal(t, "multipart/form-data; boundary=xyz", got().Get("Content-Type"))

	send("/tenant", nil)
	assert.Equal(t, "beta", c.Tenant())

	send("/c", nil)
	assert.Equal(t, "beta", got().Get("tenant"))
}
