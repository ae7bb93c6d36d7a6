package client

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrBaseURL is returned for a console url without scheme or host.
	ErrBaseURL = errors.New("console url needs scheme and host")

	// ErrRefreshFailed is the outcome of a rejected session refresh.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrUnknownCookie is returned by FileJar.Value for an absent cookie.
	ErrUnknownCookie = errors.New("cookie not found")
)

// APIError is a non 2xx answer of the console api.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements error.
func (e *APIError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Message
}

// envelope is the error body of the console api.
type envelope struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// newAPIError picks the envelope message, then details, then the raw text, then the status text.
func newAPIError(status int, body []byte) *APIError {
	var env envelope

	msg := ""

	if err := json.Unmarshal(body, &env); err == nil {
		switch {
		case env.Message != "":
			msg = env.Message
		case env.Details != "":
			msg = env.Details
		}
	} else {
		msg = strings.TrimSpace(string(body))
	}

	if msg == "" {
		msg = http.StatusText(status)
	}

	return &APIError{StatusCode: status, Message: msg}
}
