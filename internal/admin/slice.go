// Package admin is the administration slice: user management, platform
// statistics and the cross-user file listing.
package admin

import (
	"context"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
)

type API interface {
	Users(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.User], error)
	User(ctx context.Context, userID string) (apiclient.User, error)
	UpdateRole(ctx context.Context, userID string, role apiclient.Role) (apiclient.User, error)
	ToggleStatus(ctx context.Context, userID string) (apiclient.User, error)
	DeleteUser(ctx context.Context, userID string) error
	Stats(ctx context.Context) (apiclient.PlatformStats, error)
	Files(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.FileRecord], error)
}

type State struct {
	Users        apiclient.Page[apiclient.User]       `json:"users"`
	SelectedUser *apiclient.User                      `json:"selectedUser"`
	Stats        *apiclient.PlatformStats             `json:"stats"`
	Files        apiclient.Page[apiclient.FileRecord] `json:"files"`
}

func initialState() State {
	return State{
		Users: apiclient.Page[apiclient.User]{Items: []apiclient.User{}, Page: 1, TotalPages: 1},
		Files: apiclient.Page[apiclient.FileRecord]{Items: []apiclient.FileRecord{}, Page: 1, TotalPages: 1},
	}
}

type View struct {
	State
	async.Status
}

type Slice struct {
	s   *async.Slice[State]
	api API
}

func New(d *async.Dispatcher, api API) *Slice {
	return &Slice{s: async.NewSlice(d, "admin", initialState()), api: api}
}

func (a *Slice) View() View {
	st, status := a.s.Snapshot()
	return View{State: st, Status: status}
}

func (a *Slice) State() State { return a.s.State() }

func (a *Slice) FetchUsers(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.User], error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.Page[apiclient.User]]{
		Name:     "admin/fetchUsers",
		Fallback: "Failed to fetch users",
		Call: func(ctx context.Context) (apiclient.Page[apiclient.User], error) {
			return a.api.Users(ctx, params)
		},
		Fulfilled: func(st *State, page apiclient.Page[apiclient.User]) { st.Users = page },
	})
}

func (a *Slice) FetchUser(ctx context.Context, userID string) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:     "admin/fetchUser",
		Fallback: "Failed to fetch user",
		Call: func(ctx context.Context) (apiclient.User, error) {
			return a.api.User(ctx, userID)
		},
		Fulfilled: func(st *State, user apiclient.User) { st.SelectedUser = &user },
	})
}

func (a *Slice) UpdateUserRole(ctx context.Context, userID string, role apiclient.Role) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:     "admin/updateUserRole",
		Fallback: "Failed to update user role",
		Call: func(ctx context.Context) (apiclient.User, error) {
			return a.api.UpdateRole(ctx, userID, role)
		},
		Fulfilled: replaceUser,
	})
}

func (a *Slice) ToggleUserStatus(ctx context.Context, userID string) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:     "admin/toggleUserStatus",
		Fallback: "Failed to update user status",
		Call: func(ctx context.Context) (apiclient.User, error) {
			return a.api.ToggleStatus(ctx, userID)
		},
		Fulfilled: replaceUser,
	})
}

func (a *Slice) DeleteUser(ctx context.Context, userID string) error {
	_, err := async.Run(ctx, a.s, async.Op[State, string]{
		Name:     "admin/deleteUser",
		Fallback: "Failed to delete user",
		Call: func(ctx context.Context) (string, error) {
			return userID, a.api.DeleteUser(ctx, userID)
		},
		Fulfilled: func(st *State, id string) {
			kept := make([]apiclient.User, 0, len(st.Users.Items))
			for _, u := range st.Users.Items {
				if u.ID != id {
					kept = append(kept, u)
				}
			}
			st.Users.Items = kept
			if st.Users.Total > 0 {
				st.Users.Total--
			}
			if st.SelectedUser != nil && st.SelectedUser.ID == id {
				st.SelectedUser = nil
			}
		},
	})
	return err
}

func (a *Slice) FetchStats(ctx context.Context) (apiclient.PlatformStats, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.PlatformStats]{
		Name:     "admin/fetchStats",
		Fallback: "Failed to fetch platform statistics",
		Call:     a.api.Stats,
		Fulfilled: func(st *State, stats apiclient.PlatformStats) {
			st.Stats = &stats
		},
	})
}

func (a *Slice) FetchAllFiles(ctx context.Context, params apiclient.ListParams) (apiclient.Page[apiclient.FileRecord], error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.Page[apiclient.FileRecord]]{
		Name:     "admin/fetchAllFiles",
		Fallback: "Failed to fetch files",
		Call: func(ctx context.Context) (apiclient.Page[apiclient.FileRecord], error) {
			return a.api.Files(ctx, params)
		},
		Fulfilled: func(st *State, page apiclient.Page[apiclient.FileRecord]) { st.Files = page },
	})
}

func (a *Slice) ClearError() { a.s.ClearError() }

func (a *Slice) Reset() { a.s.Reset(initialState()) }

// replaceUser swaps the row with the same id and refreshes the selection.
func replaceUser(st *State, user apiclient.User) {
	items := make([]apiclient.User, len(st.Users.Items))
	copy(items, st.Users.Items)
	for i := range items {
		if items[i].ID == user.ID {
			items[i] = user
		}
	}
	st.Users.Items = items
	if st.SelectedUser != nil && st.SelectedUser.ID == user.ID {
		st.SelectedUser = &user
	}
}
