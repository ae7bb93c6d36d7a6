package proxy

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Messages of locally generated errors.
const (
	MsgNotAuthenticated    = "Not authenticated"
	MsgInvalidJSON         = "Invalid JSON body"
	MsgUpstreamUnavailable = "Backend unavailable"
	MsgUpstreamTimeout     = "Backend request timed out"
)

// ErrorResponse is the JSON error envelope of every api route.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// OKResponse is sent for successful calls without a body.
type OKResponse struct {
	OK bool `json:"ok"`
}

// Error sends the error envelope with status.
func Error(c fiber.Ctx, status int, message, details string) error {
	return c.Status(status).JSON(ErrorResponse{Message: message, Details: details})
}

// ErrorHandler renders errors escaping a handler as the JSON envelope.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(code).JSON(ErrorResponse{Message: message})
}
