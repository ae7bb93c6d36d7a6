package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Console api paths used by the typed helpers.
const (
	LoginPath  = "/api/auth/login"
	LogoutPath = "/api/auth/logout"
	MePath     = "/api/me"
	UsersPath  = "/api/admin/users"
)

// LoginRequest is the credential payload of Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Tenant   string `json:"tenant,omitempty"`
}

// DoJSON sends in as JSON and decodes a 2xx answer into out, both may be nil.
// Other answers return an *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	return c.doJSON(ctx, method, path, in, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}

		body = bytes.NewReader(raw)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.Do(req, opts...)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}

// Login exchanges credentials for the session cookies stored in the jar.
func (c *Client) Login(ctx context.Context, req LoginRequest) error {
	return c.doJSON(ctx, http.MethodPost, LoginPath, req, nil, SkipAuthRefresh())
}

// Logout expires the session cookies.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, LogoutPath, nil, nil, SkipAuthRefresh())
}

// Me returns the profile of the signed in user.
func (c *Client) Me(ctx context.Context) (map[string]any, error) {
	var me map[string]any

	if err := c.DoJSON(ctx, http.MethodGet, MePath, nil, &me); err != nil {
		return nil, err
	}

	return me, nil
}

// ListUsers returns the raw user listing, query is passed through to the backend.
func (c *Client) ListUsers(ctx context.Context, query url.Values) (json.RawMessage, error) {
	path := UsersPath
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var users json.RawMessage

	if err := c.DoJSON(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}

	return users, nil
}
