package apiclient

import (
	"context"
	"net/http"
)

// AuthAPI covers the /auth resource group.
type AuthAPI struct {
	c *Client
}

type userEnvelope struct {
	User User `json:"user"`
}

// Login exchanges credentials for a token and the user profile. A 401 is
// reported as ErrInvalidCredentials.
func (a *AuthAPI) Login(ctx context.Context, creds Credentials) (AuthResult, error) {
	var out AuthResult
	if err := a.c.sendJSON(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return AuthResult{}, credentialsError(err)
	}
	return out, nil
}

// Register creates an account and returns its token and profile.
func (a *AuthAPI) Register(ctx context.Context, reg Registration) (AuthResult, error) {
	var out AuthResult
	if err := a.c.sendJSON(ctx, http.MethodPost, "/auth/register", reg, &out); err != nil {
		return AuthResult{}, credentialsError(err)
	}
	return out, nil
}

// Profile returns the user the current token belongs to.
func (a *AuthAPI) Profile(ctx context.Context) (User, error) {
	var out userEnvelope
	err := a.c.getJSON(ctx, "/auth/profile", nil, &out)
	return out.User, err
}

// UpdateProfile changes username and/or email.
func (a *AuthAPI) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	var out userEnvelope
	err := a.c.sendJSON(ctx, http.MethodPut, "/auth/profile", update, &out)
	return out.User, err
}

// ChangePassword replaces the account password.
func (a *AuthAPI) ChangePassword(ctx context.Context, change PasswordChange) error {
	return a.c.sendJSON(ctx, http.MethodPut, "/auth/change-password", change, nil)
}

// Verify checks that the current token is still accepted.
func (a *AuthAPI) Verify(ctx context.Context) (User, error) {
	var out userEnvelope
	err := a.c.getJSON(ctx, "/auth/verify", nil, &out)
	return out.User, err
}
