// Package proxy forwards same origin api calls to the identity API.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/web/session"
)

// Target describes where and how a request is forwarded.
type Target struct {
	// Method overrides the request method.
	Method string

	// Path below the api prefix with parameters already resolved.
	Path string

	// Action describes the operation, sent as details of error responses.
	Action string

	// Public routes do not require an access token.
	Public bool

	// WrapText wraps a non JSON success body as {"message": text}.
	WrapText bool

	// Body and ContentType replace the request body when Body is not nil.
	Body        []byte
	ContentType string
}

// Proxy forwards requests with the session of the caller.
type Proxy struct {
	upstream      *upstream.Client
	defaultTenant string
}

// New creates a proxy for up.
func New(up *upstream.Client) *Proxy {
	return &Proxy{upstream: up, defaultTenant: up.DefaultTenant()}
}

// Upstream returns the underlying client.
func (p *Proxy) Upstream() *upstream.Client { return p.upstream }

// Session reads the session of the request with the default tenant applied.
func (p *Proxy) Session(c fiber.Ctx) session.Session {
	return session.Read(c, p.defaultTenant)
}

// Forward sends the request to t and relays the outcome.
func (p *Proxy) Forward(c fiber.Ctx, t Target) error {
	sess := p.Session(c)
	if !t.Public && sess.AccessToken == "" {
		return Error(c, fiber.StatusUnauthorized, MsgNotAuthenticated, "")
	}

	body, contentType := t.Body, t.ContentType
	if body == nil {
		var err error
		if body, contentType, err = requestBody(c); err != nil {
			return Error(c, fiber.StatusBadRequest, MsgInvalidJSON, err.Error())
		}
	}

	method := t.Method
	if method == "" {
		method = c.Method()
	}

	resp, err := p.upstream.Do(c.Context(), upstream.Request{
		Method:      method,
		Path:        t.Path,
		Query:       string(c.Request().URI().QueryString()),
		Body:        bytes.NewReader(body),
		ContentType: contentType,
		Accept:      c.Get(fiber.HeaderAccept),
		Token:       sess.AccessToken,
		Tenant:      sess.Tenant,
		RequestID:   requestid.FromContext(c),
	})
	if err != nil {
		return p.Unreachable(c, t.Action, err)
	}

	if !resp.OK() {
		return Error(c, resp.StatusCode, resp.Message(), t.Action)
	}

	return Relay(c, method, resp, t.WrapText)
}

// Unreachable answers a transport failure with 502, or 504 on a deadline.
func (p *Proxy) Unreachable(c fiber.Ctx, action string, err error) error {
	if errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("action", action).Msg("client went away")

		return Error(c, fiber.StatusBadGateway, MsgUpstreamUnavailable, action)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Str("action", action).Msg("upstream timeout")

		return Error(c, fiber.StatusGatewayTimeout, MsgUpstreamTimeout, action)
	}

	log.Error().Err(err).Str("action", action).Msg("upstream unreachable")

	return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
		Message: MsgUpstreamUnavailable,
		Details: action,
		Hint:    upstream.Hint(p.upstream.BaseURL()),
	})
}

// Relay writes a successful upstream response.
func Relay(c fiber.Ctx, method string, resp *upstream.Response, wrapText bool) error {
	body := bytes.TrimSpace(resp.Body)

	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		if method == http.MethodDelete {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Status(fiber.StatusOK).JSON(OKResponse{OK: true})
	}

	if json.Valid(body) {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		return c.Status(resp.StatusCode).Send(body)
	}

	if wrapText {
		return c.Status(resp.StatusCode).JSON(fiber.Map{"message": string(body)})
	}

	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
		c.Set(fiber.HeaderContentType, ct)
	}

	return c.Status(resp.StatusCode).Send(body)
}

// requestBody returns the body to forward, JSON bodies must be well formed.
func requestBody(c fiber.Ctx) ([]byte, string, error) {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, "", nil
	}

	contentType := c.Get(fiber.HeaderContentType)
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return body, contentType, nil
	}

	if !json.Valid(body) {
		return nil, "", errors.New("request body is not valid JSON")
	}

	return body, fiber.MIMEApplicationJSON, nil
}
