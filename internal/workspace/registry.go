package workspace

import (
	"context"
	"sync"
	"time"

	"sheetchart-web/internal/shared/metrics"
	"sheetchart-web/internal/shared/telemetry"
)

// Registry maps client ids to workspaces and evicts idle ones.
type Registry struct {
	deps Deps
	idle time.Duration
	now  func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewRegistry(deps Deps, idle time.Duration) *Registry {
	return &Registry{
		deps:  deps,
		idle:  idle,
		now:   time.Now,
		items: make(map[string]*Workspace),
	}
}

// Get returns the workspace of id, creating it on first use and hydrating it
// from the session store. A hydration failure is logged and leaves the
// workspace logged out.
func (r *Registry) Get(ctx context.Context, id string) *Workspace {
	now := r.now()
	r.mu.Lock()
	w, ok := r.items[id]
	if !ok {
		w = New(id, r.deps)
		r.items[id] = w
		metrics.SetWorkspacesActive(len(r.items))
	}
	r.mu.Unlock()
	w.Touch(now)

	if _, err := w.Hydrate(ctx); err != nil {
		telemetry.Warn("workspace.hydrate_failed", map[string]any{
			"client_id": id,
			"error":     err.Error(),
		})
	}
	return w
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Evict drops workspaces unseen for longer than the idle timeout. Their
// durable tokens stay in the store, so a returning client is hydrated again.
func (r *Registry) Evict() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)
	r.mu.Lock()
	evicted := 0
	for id, w := range r.items {
		if w.LastSeen().Before(cutoff) {
			delete(r.items, id)
			evicted++
		}
	}
	active := len(r.items)
	r.mu.Unlock()

	metrics.SetWorkspacesActive(active)
	if evicted > 0 {
		metrics.AddWorkspacesEvicted(evicted)
		telemetry.Info("workspace.evicted", map[string]any{"evicted": evicted, "active": active})
	}
	return evicted
}

// Run evicts idle workspaces every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}
