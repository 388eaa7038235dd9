// Package workspace bundles the per-client state of the presentation layer:
// one session, one dispatcher, the slices and the notice queue.
package workspace

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"sheetchart-web/internal/admin"
	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/auth"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/files"
	"sheetchart-web/internal/notify"
	"sheetchart-web/internal/session"
)

// MsgSessionExpired is queued when an authentication failure ends a session.
const MsgSessionExpired = "Your session has expired. Please log in again."

// Deps are shared by every workspace.
type Deps struct {
	APIBaseURL string
	APITimeout time.Duration
	HTTPClient *http.Client
	Store      session.Store
	// Observers receive the transitions of every workspace.
	Observers []async.Observer
}

type Workspace struct {
	ID         string
	Holder     *session.Holder
	Dispatcher *async.Dispatcher
	Client     *apiclient.Client
	Observer   *session.Observer
	Notices    *notify.Queue

	Auth   *auth.Slice
	Files  *files.Slice
	Charts *charts.Slice
	Admin  *admin.Slice

	lastSeen atomic.Int64

	hydrateMu sync.Mutex
	hydrated  bool
}

// New builds a workspace for client id. The session starts empty; call
// Hydrate to restore a persisted token.
func New(id string, deps Deps) *Workspace {
	w := &Workspace{
		ID:      id,
		Holder:  session.NewHolder(deps.Store, id),
		Notices: notify.NewQueue(notify.DefaultCapacity),
	}

	opts := []apiclient.Option{apiclient.WithTokenSource(w.Holder)}
	if deps.HTTPClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(deps.HTTPClient))
	}
	if deps.APITimeout > 0 {
		opts = append(opts, apiclient.WithTimeout(deps.APITimeout))
	}
	w.Client = apiclient.New(deps.APIBaseURL, opts...)

	w.Dispatcher = async.NewDispatcher(deps.Observers...)
	w.Observer = session.NewObserver(w.Holder, w.expired)
	w.Dispatcher.Observe(w.Observer.Transition)

	w.Auth = auth.New(w.Dispatcher, w.Client.Auth, w.Holder)
	w.Files = files.New(w.Dispatcher, w.Client.Files)
	w.Charts = charts.New(w.Dispatcher, w.Client.Charts)
	w.Admin = admin.New(w.Dispatcher, w.Client.Admin)
	w.Touch(time.Now())
	return w
}

// Session implements guard.Resolver.
func (w *Workspace) Session() session.Session { return w.Holder.Snapshot() }

// ResolveSession implements guard.Resolver.
func (w *Workspace) ResolveSession(ctx context.Context) error {
	_, err := w.Auth.GetProfile(ctx)
	return err
}

// hydrateTimeout bounds one store lookup during Hydrate.
const hydrateTimeout = 5 * time.Second

// Hydrate restores a persisted token, if any. The lookup is detached from
// ctx cancellation so an aborted request cannot poison the workspace. Once a
// lookup succeeds later calls return immediately; a failed one is retried on
// the next call.
func (w *Workspace) Hydrate(ctx context.Context) (bool, error) {
	w.hydrateMu.Lock()
	defer w.hydrateMu.Unlock()
	if w.hydrated {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()
	restored, err := w.Holder.Hydrate(ctx)
	if err != nil {
		return false, err
	}
	w.hydrated = true
	return restored, nil
}

// Logout ends the session and empties every slice.
func (w *Workspace) Logout(ctx context.Context) error {
	err := w.Auth.Logout(ctx)
	w.resetData()
	return err
}

// TakeRedirect returns the navigation requested by the session observer.
func (w *Workspace) TakeRedirect() (string, bool) { return w.Observer.TakeRedirect() }

func (w *Workspace) Touch(now time.Time) { w.lastSeen.Store(now.UnixNano()) }

func (w *Workspace) LastSeen() time.Time { return time.Unix(0, w.lastSeen.Load()) }

func (w *Workspace) expired() {
	w.Auth.Reset()
	w.resetData()
	w.Notices.Info(MsgSessionExpired)
}

func (w *Workspace) resetData() {
	w.Files.Reset()
	w.Charts.Reset()
	w.Admin.Reset()
}
