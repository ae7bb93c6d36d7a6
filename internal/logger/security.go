package logger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Categories of security relevant events.
const (
	CategoryAuth     = "auth"
	CategoryToken    = "token"
	CategoryProfile  = "profile"
	CategoryPassword = "password"
)

func securityEvent(level zerolog.Level, category string) *zerolog.Event {
	return log.WithLevel(level).Str("category", category)
}

func outcome(success bool) zerolog.Level {
	if success {
		return zerolog.InfoLevel
	}

	return zerolog.WarnLevel
}

// LoginAttempt records a login through the proxy.
func LoginAttempt(email, tenant string, success bool, reason string) {
	e := securityEvent(outcome(success), CategoryAuth).
		Str("email", email).
		Str("tenant", tenant).
		Bool("success", success)

	if !success {
		e = e.Str("reason", reason)
	}

	e.Msg("login attempt")
}

// Logout records a session being cleared.
func Logout(tenant string) {
	securityEvent(zerolog.InfoLevel, CategoryAuth).Str("tenant", tenant).Msg("session cleared")
}

// TokenRefresh records the outcome of a token rotation.
func TokenRefresh(tenant string, success bool, reason string) {
	e := securityEvent(outcome(success), CategoryToken).
		Str("tenant", tenant).
		Bool("success", success)

	if !success {
		e = e.Str("reason", reason)
	}

	e.Msg("token refresh")
}

// TokenExpired records a 401 that starts the refresh protocol.
func TokenExpired(url string) {
	securityEvent(zerolog.DebugLevel, CategoryToken).Str("url", url).Msg("access token rejected")
}

// SessionExpired records a terminal refresh failure.
func SessionExpired(redirect string) {
	securityEvent(zerolog.WarnLevel, CategoryToken).Str("redirect", redirect).Msg("session expired")
}

// ProfileUpdate records a profile change.
func ProfileUpdate(fields []string, success bool, reason string) {
	e := securityEvent(outcome(success), CategoryProfile).
		Strs("fields", fields).
		Bool("success", success)

	if !success {
		e = e.Str("reason", reason)
	}

	e.Msg("profile update")
}

// PasswordChange records a password change.
func PasswordChange(success bool, reason string) {
	e := securityEvent(outcome(success), CategoryPassword).Bool("success", success)

	if !success {
		e = e.Str("reason", reason)
	}

	e.Msg("password change")
}
