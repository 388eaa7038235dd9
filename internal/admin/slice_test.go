package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
)

type stubAPI struct {
	users     apiclient.Page[apiclient.User]
	user      apiclient.User
	updated   apiclient.User
	deleteErr error
	stats     apiclient.PlatformStats
	files     apiclient.Page[apiclient.FileRecord]
	lastRole  apiclient.Role
}

func (s *stubAPI) Users(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.User], error) {
	return s.users, nil
}

func (s *stubAPI) User(ctx context.Context, userID string) (apiclient.User, error) {
	return s.user, nil
}

func (s *stubAPI) UpdateRole(ctx context.Context, userID string, role apiclient.Role) (apiclient.User, error) {
	s.lastRole = role
	return s.updated, nil
}

func (s *stubAPI) ToggleStatus(ctx context.Context, userID string) (apiclient.User, error) {
	return s.updated, nil
}

func (s *stubAPI) DeleteUser(ctx context.Context, userID string) error { return s.deleteErr }

func (s *stubAPI) Stats(ctx context.Context) (apiclient.PlatformStats, error) {
	return s.stats, nil
}

func (s *stubAPI) Files(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.FileRecord], error) {
	return s.files, nil
}

func seeded(t *testing.T) (*Slice, *stubAPI) {
	t.Helper()
	api := &stubAPI{users: apiclient.Page[apiclient.User]{
		Items: []apiclient.User{
			{ID: "u1", Username: "ada", Role: apiclient.RoleUser, IsActive: true},
			{ID: "u2", Username: "bob", Role: apiclient.RoleUser, IsActive: true},
		},
		Total: 2, Page: 1, TotalPages: 1,
	}}
	a := New(async.NewDispatcher(), api)
	_, err := a.FetchUsers(context.Background(), apiclient.ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	return a, api
}

func TestUpdateUserRoleReplacesRow(t *testing.T) {
	a, api := seeded(t)
	api.user = apiclient.User{ID: "u1", Username: "ada", Role: apiclient.RoleUser}
	_, err := a.FetchUser(context.Background(), "u1")
	require.NoError(t, err)

	api.updated = apiclient.User{ID: "u1", Username: "ada", Role: apiclient.RoleAdmin, IsActive: true}
	_, err = a.UpdateUserRole(context.Background(), "u1", apiclient.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, apiclient.RoleAdmin, api.lastRole)

	view := a.View()
	assert.Equal(t, apiclient.RoleAdmin, view.Users.Items[0].Role)
	assert.Equal(t, apiclient.RoleUser, view.Users.Items[1].Role)
	assert.Equal(t, apiclient.RoleAdmin, view.SelectedUser.Role)
}

func TestToggleUserStatus(t *testing.T) {
	a, api := seeded(t)
	api.updated = apiclient.User{ID: "u2", Username: "bob", IsActive: false}
	_, err := a.ToggleUserStatus(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, a.View().Users.Items[1].IsActive)
}

func TestDeleteUser(t *testing.T) {
	a, api := seeded(t)
	require.NoError(t, a.DeleteUser(context.Background(), "u1"))
	view := a.View()
	require.Len(t, view.Users.Items, 1)
	assert.Equal(t, "u2", view.Users.Items[0].ID)
	assert.Equal(t, 1, view.Users.Total)

	api.deleteErr = errors.New("reset")
	require.Error(t, a.DeleteUser(context.Background(), "u2"))
	assert.Equal(t, "Failed to delete user", a.View().Error)
	assert.Len(t, a.View().Users.Items, 1)
}

func TestStatsAndFiles(t *testing.T) {
	a, api := seeded(t)
	api.stats = apiclient.PlatformStats{TotalUsers: 2, TotalFiles: 5}
	api.files = apiclient.Page[apiclient.FileRecord]{Items: []apiclient.FileRecord{{ID: "f1"}}, Total: 1, Page: 1, TotalPages: 1}

	_, err := a.FetchStats(context.Background())
	require.NoError(t, err)
	_, err = a.FetchAllFiles(context.Background(), apiclient.ListParams{User: "u1"})
	require.NoError(t, err)

	view := a.View()
	require.NotNil(t, view.Stats)
	assert.Equal(t, 5, view.Stats.TotalFiles)
	assert.Equal(t, 1, view.Files.Total)

	a.Reset()
	assert.Nil(t, a.View().Stats)
	assert.Empty(t, a.View().Users.Items)
}
