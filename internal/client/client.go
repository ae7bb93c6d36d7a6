// Package client is the Go client of the console's same origin api. It refreshes
// the session once on 401 and retries the original request exactly once.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
)

const (
	// RefreshPath is the session refresh endpoint of the console.
	RefreshPath = "/api/auth/refresh"

	// ExpiredRedirect is passed to OnSessionExpired.
	ExpiredRedirect = "/auth/login?expired=true"

	// DefaultExpiryDelay is the wait before OnSessionExpired runs.
	DefaultExpiryDelay = 100 * time.Millisecond

	// ExpireImmediately runs OnSessionExpired before Do returns.
	ExpireImmediately time.Duration = -1

	// DefaultTimeout of a single http call.
	DefaultTimeout = 30 * time.Second

	// HeaderTenant carries the tenant on every request.
	HeaderTenant = "tenant"

	// CookieTenant is the readable tenant cookie set by the console.
	CookieTenant = "tenant"

	refreshKey = "refresh"
)

// Config of a Client.
type Config struct {
	// BaseURL of the console, e.g. http://localhost:8080.
	BaseURL string

	// Tenant is used when the jar carries no tenant cookie.
	Tenant string

	// Timeout of a single http call, ignored with HTTPClient. 0 uses DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client, its Jar is replaced by Jar when set.
	HTTPClient *http.Client

	// Jar stores the session cookies, defaults to an in memory jar.
	Jar http.CookieJar

	// OnSessionExpired runs after a failed refresh, on its own goroutine
	// unless ExpiryDelay is ExpireImmediately.
	OnSessionExpired func(redirect string)

	// ExpiryDelay before OnSessionExpired, 0 uses DefaultExpiryDelay and a
	// negative delay runs it synchronously.
	ExpiryDelay time.Duration
}

// Client talks to the console api carrying the session cookies.
type Client struct {
	base      *url.URL
	hc        *http.Client
	tenant    string
	onExpired func(string)
	delay     time.Duration
	refresher singleflight.Group
}

type requestOptions struct {
	skipAuthRefresh bool
}

// RequestOption changes the handling of a single request.
type RequestOption func(*requestOptions)

// SkipAuthRefresh returns a 401 as is.
func SkipAuthRefresh() RequestOption {
	return func(o *requestOptions) {
		o.skipAuthRefresh = true
	}
}

// New creates a client for cfg.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse console url")
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Wrap(ErrBaseURL, cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}

	if cfg.Jar != nil {
		hc.Jar = cfg.Jar
	}

	if hc.Jar == nil {
		if hc.Jar, err = cookiejar.New(nil); err != nil {
			return nil, errors.Wrap(err, "create cookie jar")
		}
	}

	delay := cfg.ExpiryDelay
	if delay == 0 {
		delay = DefaultExpiryDelay
	}

	return &Client{
		base:      base,
		hc:        hc,
		tenant:    cfg.Tenant,
		onExpired: cfg.OnSessionExpired,
		delay:     delay,
	}, nil
}

// BaseURL of the console.
func (c *Client) BaseURL() *url.URL {
	u := *c.base

	return &u
}

// Tenant is the tenant sent with the next request.
func (c *Client) Tenant() string {
	for _, ck := range c.hc.Jar.Cookies(c.base) {
		if ck.Name == CookieTenant && ck.Value != "" {
			return ck.Value
		}
	}

	return c.tenant
}

// NewRequest builds a request for a console path such as /api/me.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.Wrap(err, "parse request path")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	return req, nil
}

// Do sends req. A 401 triggers one session refresh, on success the request is
// sent once more and that answer is returned. When the refresh fails the
// original response is returned and OnSessionExpired is scheduled.
func (c *Client) Do(req *http.Request, opts ...RequestOption) (*http.Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := replayable(req); err != nil {
		return nil, err
	}

	callerTenant := req.Header.Get(HeaderTenant) != ""

	c.prepare(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // network errors reach the caller as they are
	}

	if resp.StatusCode != http.StatusUnauthorized || o.skipAuthRefresh {
		return resp, nil
	}

	ctx := req.Context()

	if err = c.refresh(ctx); err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("url", req.URL.Path).Msg("session refresh failed")
			logger.TokenExpired(req.URL.Path)
			c.scheduleExpired()
		}

		return resp, nil
	}

	retry, err := rebuild(req)
	if err != nil {
		return resp, nil //nolint:nilerr // the original answer stays valid
	}

	drain(resp)

	// the refresh may have switched the tenant cookie
	if !callerTenant {
		retry.Header.Del(HeaderTenant)
	}

	c.prepare(retry)

	return c.hc.Do(retry) //nolint:wrapcheck
}

// refresh posts to the refresh endpoint, concurrent callers share one call.
// The shared call outlives a cancelled caller, waiters stop on their own context.
func (c *Client) refresh(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)

	ch := c.refresher.DoChan(refreshKey, func() (any, error) {
		req, err := c.NewRequest(shared, http.MethodPost, RefreshPath, nil)
		if err != nil {
			return nil, err
		}

		c.prepare(req)

		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "refresh session")
		}

		defer drain(resp)

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			body, _ := io.ReadAll(resp.Body)

			return nil, errors.Wrap(ErrRefreshFailed, newAPIError(resp.StatusCode, body).Error())
		}

		return nil, nil //nolint:nilnil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for session refresh")
	}
}

func (c *Client) scheduleExpired() {
	logger.SessionExpired(ExpiredRedirect)

	if c.onExpired == nil {
		return
	}

	if c.delay < 0 {
		c.onExpired(ExpiredRedirect)

		return
	}

	time.AfterFunc(c.delay, func() {
		c.onExpired(ExpiredRedirect)
	})
}

// prepare sets the default headers the caller did not set.
func (c *Client) prepare(req *http.Request) {
	if req.Header.Get(HeaderTenant) == "" {
		if tenant := c.Tenant(); tenant != "" {
			req.Header.Set(HeaderTenant, tenant)
		}
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// replayable makes sure the body can be sent a second time.
func replayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()

	if err != nil {
		return errors.Wrap(err, "read request body")
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return nil
}

// rebuild clones req with a fresh body, cookies are taken from the jar again.
func rebuild(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	retry.Header.Del("Cookie")

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "rewind request body")
		}

		retry.Body = body
	}

	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
