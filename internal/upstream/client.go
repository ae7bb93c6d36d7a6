// Package upstream is the HTTP client of the identity REST API.
//
// Every request carries the tenant header, a request id and, when a token is
// given, a bearer Authorization header. Bodies are read completely so callers
// can relay them or extract an error message.
package upstream

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
)

// Header names used towards the identity API.
const (
	HeaderTenant    = "tenant"
	HeaderRequestID = "X-Request-ID"
)

// Client talks to one identity API.
type Client struct {
	baseURL       string
	apiURL        string
	defaultTenant string
	http          *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the configured upstream.
func New(cfg config.Upstream, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNilConfig
	}

	base := strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		baseURL:       base,
		apiURL:        base + "/" + strings.Trim(cfg.APIPrefix, "/"),
		defaultTenant: cfg.DefaultTenant,
		http:          &http.Client{Timeout: cfg.Timeout},
	}

	if strings.Trim(cfg.APIPrefix, "/") == "" {
		c.apiURL = base
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the configured base url without the api prefix.
func (c *Client) BaseURL() string { return c.baseURL }

// DefaultTenant returns the tenant used when a request names none.
func (c *Client) DefaultTenant() string { return c.defaultTenant }

// Request describes one call to the identity API.
type Request struct {
	Method      string
	Path        string // below the api prefix, e.g. /identity/profile
	Query       string // raw query string without '?'
	Body        io.Reader
	ContentType string
	Accept      string
	Token       string
	Tenant      string
	RequestID   string
	NoStore     bool
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Message extracts the error message of the body.
func (r *Response) Message() string {
	return ExtractMessage(r.StatusCode, r.Body)
}

// Err returns a *StatusError for non 2xx responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}

	return &StatusError{StatusCode: r.StatusCode, Message: r.Message(), Body: r.Body}
}

// URL returns the absolute url of path below the api prefix.
func (c *Client) URL(path, query string) string {
	u := c.apiURL + "/" + strings.TrimLeft(path, "/")
	if query != "" {
		u += "?" + query
	}

	return u
}

// Do sends req. Transport failures are returned as *UnreachableError, the
// status of the response is not checked.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.URL(req.Path, req.Query), req.Body)
	if err != nil {
		return nil, errors.Wrap(err, "build upstream request")
	}

	tenant := req.Tenant
	if tenant == "" {
		tenant = c.defaultTenant
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}

	httpReq.Header.Set(HeaderTenant, tenant)
	httpReq.Header.Set(HeaderRequestID, requestID)
	httpReq.Header.Set("Accept", accept)

	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	if req.NoStore {
		httpReq.Header.Set("Cache-Control", "no-store")
	}

	start := time.Now()

	resp, err := c.http.Do(httpReq)
	requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(method, "error").Inc()

		return nil, &UnreachableError{BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{BaseURL: c.baseURL, Err: errors.Wrap(err, "read upstream body")}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
