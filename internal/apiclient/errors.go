package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is matched by any response carrying HTTP 401.
var ErrUnauthorized = errors.New("authentication required")

// APIError is a non-2xx response from the server.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// UserMessage is the server-provided human readable message, if any.
func (e *APIError) UserMessage() string {
	return e.Message
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// newAPIError extracts the message from the common server error shapes:
// {"error":"msg"}, {"error":{"code":"x","message":"msg"}} and {"message":"msg"}.
func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiErr
	}
	if len(envelope.Error) > 0 {
		var msg string
		if err := json.Unmarshal(envelope.Error, &msg); err == nil {
			apiErr.Message = strings.TrimSpace(msg)
		} else {
			var obj struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(envelope.Error, &obj); err == nil {
				apiErr.Code = obj.Code
				apiErr.Message = strings.TrimSpace(obj.Message)
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(envelope.Message)
	}
	return apiErr
}
