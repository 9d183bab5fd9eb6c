// ABOUTME: Process-wide rendezvous table correlating action ids to suspended waiters
// ABOUTME: Confirm/cancel from independent requests wake a waiter exactly once

package action

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry correlates an opaque action id to a single suspended waiter and
// its eventual boolean result. One instance is shared by the turn
// orchestrator and the confirm/cancel HTTP handlers; it is injected
// explicitly, never a package-level global.
type Registry struct {
	mu      sync.Mutex
	pending map[string]chan bool
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		pending: make(map[string]chan bool),
		logger:  logger.With("component", "actions"),
	}
}

// Wait registers a waiter for id and suspends until Confirm, Cancel, timeout,
// or context cancellation. Timeout and explicit cancel are indistinguishable
// to the caller: both yield false. The entry is deregistered before Wait
// returns, regardless of outcome, so a late Confirm/Cancel reports not-found.
//
// A second Wait on an id that already has a live waiter returns false
// immediately; each id permits one live registration at a time.
func (r *Registry) Wait(ctx context.Context, id string, timeout time.Duration) bool {
	ch := make(chan bool, 1)

	r.mu.Lock()
	if _, exists := r.pending[id]; exists {
		r.mu.Unlock()
		r.logger.Warn("duplicate wait for action", "action_id", id)
		return false
	}
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-ch:
		return result
	case <-timer.C:
		r.logger.Debug("action wait timed out", "action_id", id, "timeout", timeout)
		return false
	case <-ctx.Done():
		return false
	}
}

// Confirm resolves the pending action with true. Returns false if the id is
// unknown, already resolved, or already timed out.
func (r *Registry) Confirm(id string) bool {
	return r.resolve(id, true)
}

// Cancel resolves the pending action with false. Returns false if the id is
// unknown, already resolved, or already timed out.
func (r *Registry) Cancel(id string) bool {
	return r.resolve(id, false)
}

func (r *Registry) resolve(id string, result bool) bool {
	r.mu.Lock()
	ch, ok := r.pending[id]
	if ok {
		// Remove on first resolution: a duplicate confirm/cancel must
		// deterministically report not-found.
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- result
	return true
}

// PendingCount reports the number of live waiters, for observability.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
