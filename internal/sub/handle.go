package sub

import (
	"context"
	"sync"
)

// Mode distinguishes subscriptions that terminate at the end-of-stored
// marker from ones that tail live events forever.
type Mode int

const (
	// Bounded subscriptions complete once stored events are exhausted
	Bounded Mode = iota
	// Unbounded subscriptions never complete; failures are retried
	Unbounded
)

// State is the lifecycle state of a subscription handle
type State int

const (
	Created State = iota
	Active
	Retrying
	Completed // Bounded only
	Failed    // Bounded only; live subscriptions retry instead
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Retrying:
		return "retrying"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Handle is a scoped subscription. Starting a replacement subscription of
// the same purpose cancels the prior handle, so bookkeeping mistakes cannot
// leak subscriptions. Cancellation stops future deliveries from this handle;
// events already stored stay stored.
type Handle struct {
	purpose string
	mode    Mode
	cancel  context.CancelFunc

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newHandle(purpose string, mode Mode, cancel context.CancelFunc) *Handle {
	return &Handle{
		purpose: purpose,
		mode:    mode,
		cancel:  cancel,
		state:   Created,
		done:    make(chan struct{}),
	}
}

// Purpose returns the logical purpose this handle serves
func (h *Handle) Purpose() string { return h.purpose }

// Mode returns whether the subscription is bounded or unbounded
func (h *Handle) Mode() Mode { return h.mode }

// State returns the current lifecycle state
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the terminal error for a Failed handle, nil otherwise
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed once the handle reaches a terminal state
// (Completed, Failed or Cancelled).
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel stops the subscription. Safe to call repeatedly and after
// completion.
func (h *Handle) Cancel() {
	h.cancel()
	h.finish(Cancelled, nil)
}

// transition moves to a non-terminal state; terminal states are sticky
func (h *Handle) transition(next State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isTerminalLocked() {
		return
	}
	h.state = next
}

// finish moves to a terminal state exactly once
func (h *Handle) finish(terminal State, err error) {
	h.mu.Lock()
	if h.isTerminalLocked() {
		h.mu.Unlock()
		return
	}
	h.state = terminal
	h.err = err
	close(h.done)
	h.mu.Unlock()
	h.cancel()
}

func (h *Handle) isTerminalLocked() bool {
	switch h.state {
	case Completed, Failed, Cancelled:
		return true
	}
	return false
}
