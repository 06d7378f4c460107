package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Common error types for the task client
var (
	// Authentication errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNotPermitted        = errors.New("not permitted")

	// Request errors
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	// Transport errors
	ErrBackend = errors.New("backend unavailable")
	ErrDecode  = errors.New("malformed message")
)

// APIError is a non-2xx response from the backend. Payload holds the raw body so
// the view layer can present field-level messages as the server sent them.
type APIError struct {
	StatusCode int
	Message    string
	Payload    json.RawMessage
	kind       error
}

// NewAPIError classifies a backend response by status code.
func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    messageFromPayload(body),
		kind:       kindForStatus(statusCode),
	}
	if json.Valid(body) {
		apiErr.Payload = json.RawMessage(body)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}

// WithKind overrides the sentinel the error unwraps to.
func (e *APIError) WithKind(kind error) *APIError {
	e.kind = kind
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func kindForStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case statusCode == http.StatusForbidden:
		return ErrNotPermitted
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode >= 500:
		return ErrBackend
	default:
		return ErrValidation
	}
}

// messageFromPayload flattens the backend's error shapes: {"error": "..."},
// {"detail": "..."}, {"message": "..."} or field maps such as {"title": ["..."]}.
func messageFromPayload(body []byte) string {
	var asString string
	if err := json.Unmarshal(body, &asString); err == nil {
		return asString
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return strings.TrimSpace(string(body))
	}

	for _, key := range []string{"error", "detail", "message"} {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		case []any:
			msgs := make([]string, 0, len(v))
			for _, m := range v {
				msgs = append(msgs, fmt.Sprint(m))
			}
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(msgs, " ")))
		}
	}
	return strings.Join(parts, "; ")
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need only this package.
func New(text string) error {
	return errors.New(text)
}
