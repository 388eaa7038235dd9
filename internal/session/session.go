// Package session holds the credential state of one workspace: the token,
// the user it belongs to, and its durable mirror.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"sheetchart-web/internal/apiclient"
)

// Session is a point-in-time copy of the holder.
type Session struct {
	Token string          `json:"-"`
	User  *apiclient.User `json:"user"`
}

// Authenticated reports whether a token is held.
func (s Session) Authenticated() bool { return s.Token != "" }

// Resolved reports whether the user behind the token is known.
func (s Session) Resolved() bool { return s.User != nil }

// IsAdmin reports whether the resolved user has the admin role.
func (s Session) IsAdmin() bool { return s.User != nil && s.User.IsAdmin() }

// Holder is the single session of a workspace. It satisfies
// oauth2.TokenSource so the API client reads the token on every request.
type Holder struct {
	clientID string
	store    Store
	now      func() time.Time

	mu   sync.RWMutex
	sess Session
}

// NewHolder returns an empty holder mirrored to store under clientID. A nil
// store keeps the session in memory only.
func NewHolder(store Store, clientID string) *Holder {
	return &Holder{clientID: clientID, store: store, now: time.Now}
}

func (h *Holder) ClientID() string { return h.clientID }

// Snapshot returns a copy of the current session.
func (h *Holder) Snapshot() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := h.sess
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// AccessToken returns the raw token, or "" when logged out.
func (h *Holder) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess.Token
}

// Token implements oauth2.TokenSource. An empty AccessToken tells the client
// to send no Authorization header.
func (h *Holder) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: h.AccessToken(), TokenType: "Bearer"}, nil
}

// Establish replaces the session after a login or registration.
func (h *Holder) Establish(token string, user apiclient.User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = Session{Token: token, User: &user}
}

// SetUser records the user of the current token. It is ignored when no token
// is held, so a late profile response cannot resurrect a cleared session.
func (h *Holder) SetUser(user apiclient.User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess.Token == "" {
		return
	}
	h.sess.User = &user
}

// Persist writes token to the durable store.
func (h *Holder) Persist(ctx context.Context, token string) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, h.clientID, token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear drops the session and its durable copy. It returns true only for the
// call that actually removed a held token.
func (h *Holder) Clear(ctx context.Context) (bool, error) {
	h.mu.Lock()
	had := h.sess.Token != ""
	h.sess = Session{}
	h.mu.Unlock()

	if h.store == nil {
		return had, nil
	}
	if err := h.store.Delete(ctx, h.clientID); err != nil && !errors.Is(err, ErrNotFound) {
		return had, fmt.Errorf("delete session: %w", err)
	}
	return had, nil
}

// Hydrate loads a persisted token into an empty holder. The user stays
// unresolved until a profile fetch. Tokens whose exp claim has passed are
// deleted without contacting the server. It reports whether a token was loaded.
func (h *Holder) Hydrate(ctx context.Context) (bool, error) {
	if h.store == nil {
		return false, nil
	}
	token, err := h.store.Load(ctx, h.clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" || Expired(token, h.now()) {
		if err := h.store.Delete(ctx, h.clientID); err != nil && !errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("delete expired session: %w", err)
		}
		return false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess.Token != "" {
		return false, nil
	}
	h.sess = Session{Token: token}
	return true, nil
}
