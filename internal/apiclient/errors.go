package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chub/internal/models"
)

// ErrorKind classifies a failed backend request.
type ErrorKind string

const (
	// KindTransport means the request never reached the server or no response arrived.
	KindTransport ErrorKind = "transport"
	// KindValidation is a 4xx response other than 401/403/404.
	KindValidation ErrorKind = "validation"
	// KindUnauthorized is a 401 or 403 response.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindNotFound is a 404 response.
	KindNotFound ErrorKind = "not_found"
	// KindServer is a 5xx response.
	KindServer ErrorKind = "server"
)

// TransportMessage is shown when no response was received.
const TransportMessage = "No response from server. Please try again."

// APIError is returned for every failed backend request.
type APIError struct {
	Kind   ErrorKind
	Status int
	Method string
	Path   string
	// ServerMessage is the human-readable message from the error payload, if any.
	ServerMessage string
	Payload       json.RawMessage
	Err           error
}

func (e *APIError) Error() string {
	switch {
	case e.Kind == KindTransport:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	case e.ServerMessage != "":
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.ServerMessage)
	default:
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindForStatus maps a non-2xx status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// serverMessage extracts `error` (or `message`) from an error payload. Any
// other shape yields "".
func serverMessage(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	for _, field := range []string{"error", "message"} {
		raw, ok := body[field]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindNotFound
}

// IsUnauthorized reports whether err is a 401/403 from the backend.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindUnauthorized
}

// IsTransport reports whether err means no response was received.
func IsTransport(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindTransport
}

// UserMessage returns the text to show a user for err: the server's message
// verbatim when present, a retry hint for transport failures, otherwise fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsAPIError(err); ok {
		if apiErr.ServerMessage != "" {
			return apiErr.ServerMessage
		}
		if apiErr.Kind == KindTransport {
			return TransportMessage
		}
		return fallback
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
