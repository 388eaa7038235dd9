package apiclient

import (
	"errors"
	"net/http"
)

// ErrInvalidCredentials is returned by Login and Register when the server
// answers 401. It deliberately does not match ErrUnauthorized: a rejected
// password is a form error, not an expired session.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialsError carries the server message of a rejected login.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string {
	if e.Message == "" {
		return ErrInvalidCredentials.Error()
	}
	return ErrInvalidCredentials.Error() + ": " + e.Message
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }

// UserMessage returns the server message, or a generic one.
func (e *CredentialsError) UserMessage() string {
	if e.Message == "" {
		return "Invalid email or password"
	}
	return e.Message
}

func credentialsError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return &CredentialsError{Message: apiErr.Message}
	}
	return err
}
