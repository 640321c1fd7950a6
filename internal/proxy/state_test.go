package proxy

import "testing"

func TestConnectionStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to ConnectionState
		want     bool
	}{
		{StateAwaitingMethods, StateAwaitingSubAuth, true},
		{StateAwaitingMethods, StateAwaitingRequest, true},
		{StateAwaitingMethods, StateRelaying, false},
		{StateAwaitingSubAuth, StateAwaitingRequest, true},
		{StateAwaitingSubAuth, StateRelaying, false},
		{StateAwaitingRequest, StateRelaying, true},
		{StateAwaitingRequest, StateAwaitingMethods, false},
		{StateRelaying, StateAwaitingRequest, false},
		{StateRelaying, StateClosed, true},
		{StateAwaitingMethods, StateClosed, true},
		{StateClosed, StateClosed, false},
		{StateClosed, StateAwaitingMethods, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestConnectionStateString(t *testing.T) {
	t.Parallel()

	if got := StateRelaying.String(); got != "relaying" {
		t.Fatalf("got %q", got)
	}
	if got := ConnectionState(42).String(); got != "state(42)" {
		t.Fatalf("got %q", got)
	}
}
