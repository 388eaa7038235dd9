// Package auth is the authentication slice: login, registration, and profile
// maintenance for the session held by a workspace.
package auth

import (
	"context"
	"time"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/session"
	"sheetchart-web/internal/shared/telemetry"
)

// API is the subset of the remote auth resource the slice uses.
type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (apiclient.AuthResult, error)
	Register(ctx context.Context, reg apiclient.Registration) (apiclient.AuthResult, error)
	Profile(ctx context.Context) (apiclient.User, error)
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (apiclient.User, error)
	ChangePassword(ctx context.Context, change apiclient.PasswordChange) error
	Verify(ctx context.Context) (apiclient.User, error)
}

// State is what the slice owns beyond the session itself. The token and user
// live in the session holder so the API client and guards read one copy.
type State struct {
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// View is the render model of the slice.
type View struct {
	User            *apiclient.User `json:"user"`
	IsAuthenticated bool            `json:"isAuthenticated"`
	async.Status
}

type Slice struct {
	s      *async.Slice[State]
	api    API
	holder *session.Holder
	now    func() time.Time
}

func New(d *async.Dispatcher, api API, holder *session.Holder) *Slice {
	return &Slice{
		s:      async.NewSlice(d, "auth", State{}),
		api:    api,
		holder: holder,
		now:    time.Now,
	}
}

// View combines the session with the slice status.
func (a *Slice) View() View {
	sess := a.holder.Snapshot()
	return View{
		User:            sess.User,
		IsAuthenticated: sess.Authenticated(),
		Status:          a.s.Status(),
	}
}

func (a *Slice) State() State { return a.s.State() }

// Session returns the held session.
func (a *Slice) Session() session.Session { return a.holder.Snapshot() }

func (a *Slice) Login(ctx context.Context, creds apiclient.Credentials) (apiclient.User, error) {
	res, err := async.Run(ctx, a.s, async.Op[State, apiclient.AuthResult]{
		Name:     "auth/login",
		Fallback: "Login failed",
		Call: func(ctx context.Context) (apiclient.AuthResult, error) {
			res, err := a.api.Login(ctx, creds)
			if err != nil {
				return res, err
			}
			a.persist(ctx, res.Token)
			return res, nil
		},
		Fulfilled: a.establish,
	})
	return res.User, err
}

func (a *Slice) Register(ctx context.Context, reg apiclient.Registration) (apiclient.User, error) {
	res, err := async.Run(ctx, a.s, async.Op[State, apiclient.AuthResult]{
		Name:     "auth/register",
		Fallback: "Registration failed",
		Call: func(ctx context.Context) (apiclient.AuthResult, error) {
			res, err := a.api.Register(ctx, reg)
			if err != nil {
				return res, err
			}
			a.persist(ctx, res.Token)
			return res, nil
		},
		Fulfilled: a.establish,
	})
	return res.User, err
}

// GetProfile resolves the user behind the held token.
func (a *Slice) GetProfile(ctx context.Context) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:      "auth/getProfile",
		Fallback:  "Failed to fetch profile",
		Call:      a.api.Profile,
		Fulfilled: a.setUser,
	})
}

// VerifyToken asks the server whether the held token is still accepted.
func (a *Slice) VerifyToken(ctx context.Context) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:      "auth/verifyToken",
		Fallback:  "Token verification failed",
		Call:      a.api.Verify,
		Fulfilled: a.setUser,
	})
}

func (a *Slice) UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (apiclient.User, error) {
	return async.Run(ctx, a.s, async.Op[State, apiclient.User]{
		Name:     "auth/updateProfile",
		Fallback: "Failed to update profile",
		Call: func(ctx context.Context) (apiclient.User, error) {
			return a.api.UpdateProfile(ctx, update)
		},
		Fulfilled: func(st *State, user apiclient.User) {
			current := a.holder.Snapshot().User
			if current != nil {
				user = mergeUser(*current, user)
			}
			a.holder.SetUser(user)
		},
	})
}

func (a *Slice) ChangePassword(ctx context.Context, change apiclient.PasswordChange) error {
	_, err := async.Run(ctx, a.s, async.Op[State, struct{}]{
		Name:     "auth/changePassword",
		Fallback: "Failed to change password",
		Call: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.api.ChangePassword(ctx, change)
		},
	})
	return err
}

// Logout drops the session and its durable copy. It is local only; the
// server keeps no session to end.
func (a *Slice) Logout(ctx context.Context) error {
	_, err := a.holder.Clear(ctx)
	a.s.Reset(State{})
	return err
}

func (a *Slice) ClearError() { a.s.ClearError() }

// Reset empties the slice after the session was cleared elsewhere.
func (a *Slice) Reset() { a.s.Reset(State{}) }

func (a *Slice) establish(st *State, res apiclient.AuthResult) {
	a.holder.Establish(res.Token, res.User)
	a.markVerified(st)
}

func (a *Slice) setUser(st *State, user apiclient.User) {
	a.holder.SetUser(user)
	a.markVerified(st)
}

func (a *Slice) markVerified(st *State) {
	now := a.now().UTC()
	st.VerifiedAt = &now
}

// persist failures leave the session usable for this process.
func (a *Slice) persist(ctx context.Context, token string) {
	if err := a.holder.Persist(ctx, token); err != nil {
		telemetry.Warn("session.persist_failed", map[string]any{
			"client_id": a.holder.ClientID(),
			"error":     err.Error(),
		})
	}
}

// mergeUser overlays the non-empty fields of next onto current.
func mergeUser(current, next apiclient.User) apiclient.User {
	out := current
	// Booleans cannot signal absence; trust them only on a full record.
	if next.ID != "" {
		out.ID = next.ID
		out.IsActive = next.IsActive
	}
	if next.Username != "" {
		out.Username = next.Username
	}
	if next.Email != "" {
		out.Email = next.Email
	}
	if next.Role != "" {
		out.Role = next.Role
	}
	if next.LastLogin != nil {
		out.LastLogin = next.LastLogin
	}
	if !next.CreatedAt.IsZero() {
		out.CreatedAt = next.CreatedAt
	}
	if next.UploadCount != 0 {
		out.UploadCount = next.UploadCount
	}
	if next.TotalDataSize != 0 {
		out.TotalDataSize = next.TotalDataSize
	}
	return out
}
