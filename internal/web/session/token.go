package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
)

// TokenExpiry returns the exp claim of a JWT without verifying it.
// The signature belongs to the identity API, the console only needs the instant.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.UTC(), true
}

// Tokens is a token pair as returned by the identity API. Zero expiries are unknown.
type Tokens struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Build creates a session for tokens.
//
// An unknown access expiry is taken from the token exp claim, then from the
// configured lifetime. An unknown refresh expiry uses the configured lifetime.
func Build(tokens Tokens, tenant string, lifetimes config.Session, now time.Time) Session {
	s := Session{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
		Tenant:                tenant,
	}

	if s.RefreshTokenExpiresAt.IsZero() {
		s.RefreshTokenExpiresAt = now.Add(lifetimes.RefreshTokenLifetime)
	}

	if s.AccessTokenExpiresAt.IsZero() {
		if exp, ok := TokenExpiry(s.AccessToken); ok {
			s.AccessTokenExpiresAt = exp
		} else {
			s.AccessTokenExpiresAt = now.Add(lifetimes.AccessTokenLifetime)
		}
	}

	s.AccessTokenExpiresAt = Clamp(s.AccessTokenExpiresAt, s.RefreshTokenExpiresAt)

	return s
}
