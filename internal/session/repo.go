package session

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "session not found" }

// Store mirrors the credential token to durable client storage, keyed by the
// workspace's client id.
type Store interface {
	Load(ctx context.Context, clientID string) (string, error)
	Save(ctx context.Context, clientID, token string) error
	Delete(ctx context.Context, clientID string) error
}
