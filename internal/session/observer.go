package session

import (
	"context"
	"sync"
	"time"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/shared/metrics"
	"sheetchart-web/internal/shared/telemetry"
)

// LoginPath is where an expired session is sent.
const LoginPath = "/login"

// Observer reacts to authentication failures reported by any slice of a
// workspace: it clears the holder and queues one navigation to LoginPath.
type Observer struct {
	holder    *Holder
	onExpired []func()

	mu       sync.Mutex
	redirect string
}

// NewObserver wires an observer to holder. onExpired callbacks run once per
// cleared session, after the holder is emptied.
func NewObserver(holder *Holder, onExpired ...func()) *Observer {
	return &Observer{holder: holder, onExpired: onExpired}
}

// Transition is an async.Observer.
func (o *Observer) Transition(t async.Transition) {
	if t.Phase != async.PhaseRejected || !apiclient.IsUnauthorized(t.Err) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	had, err := o.holder.Clear(ctx)
	if err != nil {
		telemetry.Error("session.clear_failed", map[string]any{
			"client_id": o.holder.ClientID(),
			"error":     err.Error(),
		})
	}
	if !had {
		return
	}
	metrics.IncSessionsExpired()
	telemetry.Info("session.expired", map[string]any{
		"client_id": o.holder.ClientID(),
		"operation": t.Operation,
	})

	o.mu.Lock()
	o.redirect = LoginPath
	o.mu.Unlock()

	for _, fn := range o.onExpired {
		fn()
	}
}

// TakeRedirect returns and clears the pending navigation request.
func (o *Observer) TakeRedirect() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	target := o.redirect
	o.redirect = ""
	return target, target != ""
}
