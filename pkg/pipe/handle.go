package pipe

import (
	"context"
	"sync"
)

// SuccessFunc receives the payload of a successful operation.
type SuccessFunc func(payload any)

// FailureFunc receives the error of a failed operation.
type FailureFunc func(err error)

type handleState int

const (
	statePending handleState = iota
	stateDelivered
	stateCancelled
)

// Handle is one outstanding pipe operation. It is owned by the Pipe that
// created it and finishes exactly once: delivered (one callback ran) or
// cancelled (no callback ran).
type Handle struct {
	id uint64
	op Operation

	mu      sync.Mutex
	state   handleState
	success SuccessFunc
	failure FailureFunc
	cancel  context.CancelFunc
	done    chan struct{}
}

func newHandle(id uint64, op Operation, success SuccessFunc, failure FailureFunc, cancel context.CancelFunc) *Handle {
	return &Handle{
		id:      id,
		op:      op,
		success: success,
		failure: failure,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// ID returns the handle's sequence number within its pipe.
func (h *Handle) ID() uint64 { return h.id }

// Op returns the operation kind.
func (h *Handle) Op() Operation { return h.op }

// Done returns a channel closed once the handle has finished, either after
// its callback returned or when it was cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancelled reports whether the handle was cancelled before delivery.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateCancelled
}

// Wait blocks until the handle finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// deliver runs the matching callback unless the handle already finished.
// The pending check and the state change happen under h.mu, so a handle
// cancelled first never delivers and a delivered handle is never cancelled.
// before, when non-nil, runs once delivery is decided and ahead of the
// callback.
func (h *Handle) deliver(payload any, err error, before func()) bool {
	h.mu.Lock()
	if h.state != statePending {
		h.mu.Unlock()
		return false
	}
	h.state = stateDelivered
	success, failure := h.success, h.failure
	h.success, h.failure = nil, nil
	h.mu.Unlock()

	defer h.finish()
	if before != nil {
		before()
	}
	if err != nil {
		if failure != nil {
			failure(err)
		}
		return true
	}
	if success != nil {
		success(payload)
	}
	return true
}

// markCancelled moves a pending handle to cancelled and releases its
// exchange context. It reports whether the handle was still pending.
func (h *Handle) markCancelled() bool {
	h.mu.Lock()
	if h.state != statePending {
		h.mu.Unlock()
		return false
	}
	h.state = stateCancelled
	h.success, h.failure = nil, nil
	h.mu.Unlock()

	h.finish()
	return true
}

func (h *Handle) finish() {
	close(h.done)
	if h.cancel != nil {
		h.cancel()
	}
}
