package realtime

import (
	"sync"
	"testing"
)

func TestHealthTransitions(t *testing.T) {
	h := NewHealth()
	if h.State() != StateReconnecting {
		t.Fatalf("initial state = %v, want reconnecting", h.State())
	}

	h.OnConnected()
	if h.State() != StateConnected {
		t.Errorf("state after connect = %v, want connected", h.State())
	}

	h.OnDisconnected()
	if h.State() != StateDegraded {
		t.Errorf("state after disconnect = %v, want degraded", h.State())
	}

	h.OnAttemptFailed()
	if h.State() != StateReconnecting {
		t.Errorf("state after failed attempt = %v, want reconnecting", h.State())
	}
}

func TestHealthObserverSeesTransitions(t *testing.T) {
	h := NewHealth()

	var mu sync.Mutex
	type transition struct{ old, new ConnState }
	var seen []transition
	h.Observe(func(old, new ConnState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transition{old, new})
	})

	h.OnConnected()
	h.OnConnected() // repeat of the current state must not notify
	h.OnDisconnected()
	h.OnAttemptFailed()
	h.OnAttemptFailed()
	h.OnConnected()

	mu.Lock()
	defer mu.Unlock()
	want := []transition{
		{StateReconnecting, StateConnected},
		{StateConnected, StateDegraded},
		{StateDegraded, StateReconnecting},
		{StateReconnecting, StateConnected},
	}
	if len(seen) != len(want) {
		t.Fatalf("got %d transitions, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateConnected, "connected"},
		{StateDegraded, "degraded"},
		{StateReconnecting, "reconnecting"},
		{ConnState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ConnState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
