package apiclient

import (
	"context"
	"net/http"
)

// AdminAPI covers the /admin resource group. The server rejects non-admin
// tokens with 403.
type AdminAPI struct {
	c *Client
}

type usersPage struct {
	Users      []User `json:"users"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// Users lists accounts, filterable by search and role.
func (a *AdminAPI) Users(ctx context.Context, params ListParams) (Page[User], error) {
	var out usersPage
	if err := a.c.getJSON(ctx, "/admin/users", params.values(), &out); err != nil {
		return Page[User]{}, err
	}
	items := out.Users
	if items == nil {
		items = []User{}
	}
	return Page[User]{Items: items, Total: out.Total, Page: out.Page, TotalPages: out.TotalPages}, nil
}

// User returns one account.
func (a *AdminAPI) User(ctx context.Context, userID string) (User, error) {
	var out userEnvelope
	err := a.c.getJSON(ctx, "/admin/users/"+escape(userID), nil, &out)
	return out.User, err
}

// UpdateRole sets the role of an account.
func (a *AdminAPI) UpdateRole(ctx context.Context, userID string, role Role) (User, error) {
	var out userEnvelope
	err := a.c.sendJSON(ctx, http.MethodPut, "/admin/users/"+escape(userID)+"/role", map[string]Role{"role": role}, &out)
	return out.User, err
}

// ToggleStatus flips an account between active and inactive.
func (a *AdminAPI) ToggleStatus(ctx context.Context, userID string) (User, error) {
	var out userEnvelope
	err := a.c.sendJSON(ctx, http.MethodPut, "/admin/users/"+escape(userID)+"/status", nil, &out)
	return out.User, err
}

// DeleteUser removes an account.
func (a *AdminAPI) DeleteUser(ctx context.Context, userID string) error {
	return a.c.do(ctx, http.MethodDelete, "/admin/users/"+escape(userID), nil, nil, "", nil)
}

// Stats returns platform-wide counters.
func (a *AdminAPI) Stats(ctx context.Context) (PlatformStats, error) {
	var out struct {
		Stats PlatformStats `json:"stats"`
	}
	err := a.c.getJSON(ctx, "/admin/stats", nil, &out)
	return out.Stats, err
}

// Files lists every user's files, filterable by search and owner.
func (a *AdminAPI) Files(ctx context.Context, params ListParams) (Page[FileRecord], error) {
	var out filesPage
	if err := a.c.getJSON(ctx, "/admin/files", params.values(), &out); err != nil {
		return Page[FileRecord]{}, err
	}
	return out.normalize(), nil
}
