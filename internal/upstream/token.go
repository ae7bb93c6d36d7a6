package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Token endpoints below the api prefix.
const (
	PathTokenIssue   = "/identity/token/issue"
	PathTokenRefresh = "/identity/token/refresh"
)

// Credentials of a token issue request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is a normalized token response. Expiry fields are zero when the
// upstream did not send a parseable instant.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// tokenResponse covers the issue and the refresh shape. encoding/json matches
// keys case insensitively so PascalCase bodies decode as well.
type tokenResponse struct {
	AccessToken            string `json:"accessToken"`
	Token                  string `json:"token"`
	RefreshToken           string `json:"refreshToken"`
	AccessTokenExpiresAt   string `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt  string `json:"refreshTokenExpiresAt"`
	RefreshTokenExpiryTime string `json:"refreshTokenExpiryTime"`
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // no zone means UTC
}

// ParseInstant parses the timestamp formats the identity API emits.
func ParseInstant(v string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// DecodeTokenPair normalizes an issue or refresh response body.
func DecodeTokenPair(body []byte) (TokenPair, error) {
	var raw tokenResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return TokenPair{}, errors.Wrap(err, "decode token response")
	}

	pair := TokenPair{
		AccessToken:  firstNonEmpty(raw.AccessToken, raw.Token),
		RefreshToken: raw.RefreshToken,
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return TokenPair{}, ErrTokenResponseMissing
	}

	pair.AccessTokenExpiresAt, _ = ParseInstant(raw.AccessTokenExpiresAt)
	pair.RefreshTokenExpiresAt, _ = ParseInstant(firstNonEmpty(raw.RefreshTokenExpiresAt, raw.RefreshTokenExpiryTime))

	return pair, nil
}

// IssueToken exchanges credentials for a token pair.
func (c *Client) IssueToken(ctx context.Context, tenant, requestID string, creds Credentials) (TokenPair, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "encode credentials")
	}

	return c.token(ctx, Request{
		Method:      http.MethodPost,
		Path:        PathTokenIssue,
		Body:        bytes.NewReader(payload),
		ContentType: "application/json",
		Accept:      "*/*",
		Tenant:      tenant,
		RequestID:   requestID,
	})
}

// RefreshToken rotates a token pair.
func (c *Client) RefreshToken(ctx context.Context, tenant, requestID, accessToken, refreshToken string) (TokenPair, error) {
	payload, err := json.Marshal(map[string]string{
		"token":        accessToken,
		"refreshToken": refreshToken,
	})
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "encode refresh request")
	}

	return c.token(ctx, Request{
		Method:      http.MethodPost,
		Path:        PathTokenRefresh,
		Body:        bytes.NewReader(payload),
		ContentType: "application/json",
		Tenant:      tenant,
		RequestID:   requestID,
		NoStore:     true,
	})
}

func (c *Client) token(ctx context.Context, req Request) (TokenPair, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return TokenPair{}, err
	}

	if err := resp.Err(); err != nil {
		return TokenPair{}, err
	}

	return DecodeTokenPair(resp.Body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
