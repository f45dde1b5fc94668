package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RequestError is a non-success HTTP response. Body is the server's text verbatim.
type RequestError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// AuthError means the backend rejected credentials or the bearer token.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return "authentication failed: " + e.Detail
	}
	return fmt.Sprintf("authentication failed: status %d", e.Status)
}

// detailOf pulls the human message out of a `{"detail": ...}` error body and
// falls back to the raw text.
func detailOf(body string) string {
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			b, _ := json.Marshal(d)
			return string(b)
		}
	}
	return strings.TrimSpace(body)
}
