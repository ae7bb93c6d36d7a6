package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenResponseMissing is returned when a token response lacks a token.
	ErrTokenResponseMissing = errors.New("token response missing")

	// ErrNilConfig is returned by New without a base url.
	ErrNilConfig = errors.New("upstream base url is empty")
)

// StatusError is a non 2xx response of the identity API.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Message)
}

// UnreachableError wraps a transport failure.
type UnreachableError struct {
	BaseURL string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("upstream %s unreachable: %v", e.BaseURL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint names the targeted upstream in operator facing error responses.
func (e *UnreachableError) Hint() string {
	return Hint(e.BaseURL)
}

// Hint renders the diagnostic hint for an unreachable base url.
func Hint(baseURL string) string {
	return fmt.Sprintf("Check BACKEND_API_BASE_URL (%s) and backend availability.", baseURL)
}
