package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failing := func() error { return errors.New("db down") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatal("Expected error from failing call")
		}
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Expected open state after %d failures, got %v", 3, cb.GetState())
	}

	if err := cb.Execute(context.Background(), failing); err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_ClosesAfterRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return errors.New("boom") }); err == nil {
		t.Fatal("Expected error from failing call")
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected successful call after reset timeout, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after recovery, got %v", cb.GetState())
	}
}
