package session

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/logger"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/upstream"
)

// ErrNoRefreshToken is returned by Rotate for a session without refresh token.
var ErrNoRefreshToken = errors.New("session has no refresh token")

// Rotator exchanges refresh tokens for rotated sessions. Concurrent rotations
// of one refresh token share a single upstream call.
type Rotator struct {
	up        *upstream.Client
	cookies   *Cookies
	lifetimes config.Session
	group     singleflight.Group
	now       func() time.Time
}

// NewRotator returns a rotator writing through cookies.
func NewRotator(up *upstream.Client, cookies *Cookies, lifetimes config.Session) *Rotator {
	return &Rotator{
		up:        up,
		cookies:   cookies,
		lifetimes: lifetimes,
		now:       time.Now,
	}
}

// Rotate refreshes current, writes the rotated cookies to the response and
// replaces the token cookies of the request so later handlers see the new pair.
// On error nothing is written.
func (r *Rotator) Rotate(c fiber.Ctx, current Session) (Session, error) {
	if current.RefreshToken == "" {
		ObserveRefresh(OutcomeMissing)

		return Session{}, ErrNoRefreshToken
	}

	requestID := requestid.FromContext(c)
	// the first caller's cancellation must not fail the callers sharing its result
	ctx := context.WithoutCancel(c.Context())

	v, err, shared := r.group.Do(current.RefreshToken, func() (any, error) {
		return r.up.RefreshToken(ctx, current.Tenant, requestID, current.AccessToken, current.RefreshToken)
	})
	if shared {
		refreshShared.Inc()
	}

	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			ObserveRefresh(OutcomeRejected)
		} else {
			ObserveRefresh(OutcomeUnavailable)
		}

		logger.TokenRefresh(current.Tenant, false, err.Error())

		return Session{}, errors.Wrap(err, "rotate session")
	}

	pair, _ := v.(upstream.TokenPair)

	rotated := Build(Tokens{
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}, current.Tenant, r.lifetimes, r.now())

	r.cookies.Rotate(c, rotated)

	c.Request().Header.SetCookie(CookieAccessToken, rotated.AccessToken)
	c.Request().Header.SetCookie(CookieRefreshToken, rotated.RefreshToken)

	ObserveRefresh(OutcomeSuccess)
	logger.TokenRefresh(current.Tenant, true, "")

	return rotated, nil
}
