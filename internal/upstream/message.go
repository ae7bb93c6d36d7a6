package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxTextMessage caps raw text bodies used as error messages.
const maxTextMessage = 500

var messageKeys = []string{"message", "details", "detail", "title"}

var fallbackMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request",
	http.StatusUnauthorized:        "Not authenticated",
	http.StatusForbidden:           "Access denied",
	http.StatusNotFound:            "Resource not found",
	http.StatusConflict:            "Conflict with existing data",
	http.StatusInternalServerError: "Internal server error",
	http.StatusServiceUnavailable:  "Service unavailable",
}

// FallbackMessage returns the message used when a body carries none.
func FallbackMessage(status int) string {
	if m, ok := fallbackMessages[status]; ok {
		return m
	}

	return fmt.Sprintf("Request failed with status %d", status)
}

// ExtractMessage picks a human readable message out of an error body.
// JSON objects are searched for message, details, detail and title in that
// order, any other non empty body is used as text.
func ExtractMessage(status int, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return FallbackMessage(status)
	}

	if body[0] == '{' {
		var envelope map[string]any
		if err := json.Unmarshal(body, &envelope); err == nil {
			for _, key := range messageKeys {
				if s, ok := envelope[key].(string); ok && strings.TrimSpace(s) != "" {
					return s
				}
			}

			return FallbackMessage(status)
		}
	}

	var quoted string
	if err := json.Unmarshal(body, &quoted); err == nil && quoted != "" {
		return quoted
	}

	text := string(body)
	if len(text) > maxTextMessage {
		n := maxTextMessage
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}

		text = text[:n]
	}

	return text
}
