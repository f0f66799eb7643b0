package realtime

import "sync"

// ConnState describes the health of the realtime subscription link.
type ConnState int

const (
	// StateConnected means the listener has a live connection and events
	// are flowing.
	StateConnected ConnState = iota
	// StateDegraded means the connection dropped; events may be lost until
	// the link recovers.
	StateDegraded
	// StateReconnecting means reconnect attempts are in progress.
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Health is the connection-health state machine. Transitions are driven by
// listener lifecycle callbacks. Observers are notified on every transition;
// anything received while Degraded or Reconnecting may have been missed, so
// the engine refetches when the state returns to Connected.
type Health struct {
	mu        sync.Mutex
	state     ConnState
	observers []func(old, new ConnState)
}

func NewHealth() *Health {
	return &Health{state: StateReconnecting}
}

// State returns the current connection state.
func (h *Health) State() ConnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Observe registers a transition observer. Observers are called outside the
// lock, in registration order.
func (h *Health) Observe(fn func(old, new ConnState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

// OnConnected records a live connection (initial connect or successful
// reconnect).
func (h *Health) OnConnected() {
	h.transition(StateConnected)
}

// OnDisconnected records a dropped connection.
func (h *Health) OnDisconnected() {
	h.transition(StateDegraded)
}

// OnAttemptFailed records a failed reconnect attempt.
func (h *Health) OnAttemptFailed() {
	h.transition(StateReconnecting)
}

func (h *Health) transition(next ConnState) {
	h.mu.Lock()
	prev := h.state
	if prev == next {
		h.mu.Unlock()
		return
	}
	h.state = next
	observers := make([]func(old, new ConnState), len(h.observers))
	copy(observers, h.observers)
	h.mu.Unlock()

	for _, fn := range observers {
		fn(prev, next)
	}
}
