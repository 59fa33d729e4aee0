package main

import (
	"errors"
	"testing"
)

func TestCircuitBreakerTransitions(t *testing.T) {
	failure := errors.New("boom")
	fail := func() error { return failure }
	ok := func() error { return nil }

	cb := NewCircuitBreaker(2, 3, 2, discardLogger())

	steps := []struct {
		name      string
		fn        func() error
		wantErr   error
		wantState CircuitState
	}{
		{name: "first failure", fn: fail, wantErr: failure, wantState: CircuitClosed},
		{name: "second failure opens", fn: fail, wantErr: failure, wantState: CircuitOpen},
		{name: "rejected 1", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "rejected 2", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "rejected 3", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "trial call fails and reopens", fn: fail, wantErr: failure, wantState: CircuitOpen},
		{name: "rejected again 1", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "rejected again 2", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "rejected again 3", fn: ok, wantErr: ErrCircuitOpen, wantState: CircuitOpen},
		{name: "trial call succeeds", fn: ok, wantErr: nil, wantState: CircuitHalfOpen},
		{name: "second success closes", fn: ok, wantErr: nil, wantState: CircuitClosed},
		{name: "single failure after recovery", fn: fail, wantErr: failure, wantState: CircuitClosed},
	}

	for _, step := range steps {
		err := cb.Call(step.fn)
		if !errors.Is(err, step.wantErr) && !(err == nil && step.wantErr == nil) {
			t.Fatalf("%s: Call() error = %v, want %v", step.name, err, step.wantErr)
		}
		if got := cb.State(); got != step.wantState {
			t.Fatalf("%s: state = %v, want %v", step.name, got, step.wantState)
		}
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, 1, nil)
	fail := func() error { return errors.New("boom") }

	for i := 0; i < 10; i++ {
		cb.Call(fail)
		cb.Call(fail)
		cb.Call(func() error { return nil })
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want CLOSED", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "CLOSED"},
		{CircuitOpen, "OPEN"},
		{CircuitHalfOpen, "HALF_OPEN"},
		{CircuitState(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
