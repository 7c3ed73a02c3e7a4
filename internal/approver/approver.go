// Package approver implements the generic suspend-until-consent gate: a
// registry of pending requests that callers block on until a separate
// actor approves or rejects them, or a timeout fires.
package approver

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/metrics"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

// DefaultTimeout is the fallback auto-reject interval for pending requests.
const DefaultTimeout = 3 * time.Minute

// requestIDPattern constrains externally supplied ids to lowercase hex,
// preventing id injection from untrusted callers.
var requestIDPattern = regexp.MustCompile(`^[0-9a-f]{8,64}$`)

// IsValidID reports whether id is acceptable as a pending-request key.
func IsValidID(id string) bool {
	return requestIDPattern.MatchString(id)
}

// outcome is the terminal event of a pending request.
type outcome[Res any] struct {
	result Res
	err    error
}

type entry[Req, Res any] struct {
	data Req
	// done is buffered so a settler never blocks on a caller that already
	// gave up.
	done  chan outcome[Res]
	timer *time.Timer
}

// Approver is a registry of pending requests parametrized by request-data
// and result types. It knows nothing about what is being approved; the
// same implementation serves the unlock, tx-config and sign queues.
type Approver[Req, Res any] struct {
	mu      sync.Mutex
	name    string
	timeout time.Duration
	pending map[string]*entry[Req, Res]
}

// New creates an approver. name labels the metrics for this queue;
// timeout <= 0 selects DefaultTimeout.
func New[Req, Res any](name string, timeout time.Duration) *Approver[Req, Res] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Approver[Req, Res]{
		name:    name,
		timeout: timeout,
		pending: make(map[string]*entry[Req, Res]),
	}
}

// Request registers a pending entry for id and blocks the calling
// goroutine until Approve, Reject, the timeout or context cancellation
// settles it. Registering an id that is already pending fails immediately.
func (a *Approver[Req, Res]) Request(ctx context.Context, id string, data Req) (Res, error) {
	var zero Res

	a.mu.Lock()
	if _, exists := a.pending[id]; exists {
		a.mu.Unlock()
		return zero, apperrors.DuplicateRequestID(id)
	}

	e := &entry[Req, Res]{
		data: data,
		done: make(chan outcome[Res], 1),
	}
	e.timer = time.AfterFunc(a.timeout, func() {
		a.settle(id, zero, apperrors.RequestTimeout(id), "timeout")
	})
	a.pending[id] = e
	metrics.PendingApprovals.WithLabelValues(a.name).Inc()
	a.mu.Unlock()

	select {
	case o := <-e.done:
		return o.result, o.err
	case <-ctx.Done():
		// The caller gave up. Remove the entry unless a terminal event
		// already won the race; either way exactly one outcome is queued.
		a.settle(id, zero, fmt.Errorf("request %s abandoned: %w", id, ctx.Err()), "cancelled")
		o := <-e.done
		return o.result, o.err
	}
}

// Data returns the request data associated with a pending id, so an
// approval surface can reconstruct what is being approved.
func (a *Approver[Req, Res]) Data(id string) (Req, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.pending[id]
	if !ok {
		var zero Req
		return zero, apperrors.UnknownRequestID(id)
	}
	return e.data, nil
}

// Pending returns the ids of all currently pending requests.
func (a *Approver[Req, Res]) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	return ids
}

// Approve resolves the pending request with result. Approving an id that
// is not pending is a no-op: approve legitimately races with timeout and
// reject, and the loser of that race must not fail the caller.
func (a *Approver[Req, Res]) Approve(id string, result Res) {
	a.settle(id, result, nil, "approved")
}

// Reject rejects the pending request with a user-cancellation error.
// Rejecting an id that is not pending is a no-op.
func (a *Approver[Req, Res]) Reject(id string) {
	var zero Res
	a.settle(id, zero, apperrors.UserRejected(id), "rejected")
}

// settle delivers the terminal event for id, removes the entry and cancels
// its timer. It reports whether this call won the settlement race.
func (a *Approver[Req, Res]) settle(id string, result Res, err error, outcomeLabel string) bool {
	a.mu.Lock()
	e, ok := a.pending[id]
	if !ok {
		a.mu.Unlock()
		return false
	}
	delete(a.pending, id)
	e.timer.Stop()
	metrics.PendingApprovals.WithLabelValues(a.name).Dec()
	metrics.ApprovalsResolved.WithLabelValues(a.name, outcomeLabel).Inc()
	a.mu.Unlock()

	e.done <- outcome[Res]{result: result, err: err}
	return true
}
