package safety

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterMaxFailures(t *testing.T) {
	b := NewBreaker(true, 2)
	b.SetRecovery(120*time.Millisecond, 1)

	if err := b.RecordReconnect(errors.New("dial failed 1")); err != nil {
		t.Fatalf("RecordReconnect(first) error = %v, want nil", err)
	}
	tripErr := b.RecordReconnect(errors.New("dial failed 2"))
	if !errors.Is(tripErr, ErrCircuitOpen) {
		t.Fatalf("RecordReconnect(second) error = %v, want ErrCircuitOpen", tripErr)
	}
	if err := b.AllowReconnect(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("AllowReconnect() error = %v, want ErrCircuitOpen while cooling down", err)
	}
	if rem := b.CooldownRemaining(); rem <= 0 {
		t.Fatalf("CooldownRemaining() = %s, want > 0", rem)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(true, 1)
	b.SetRecovery(120*time.Millisecond, 1)

	if err := b.RecordReconnect(errors.New("dial failed")); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("RecordReconnect(trip) error = %v, want ErrCircuitOpen", err)
	}

	time.Sleep(150 * time.Millisecond)
	if err := b.AllowReconnect(); err != nil {
		t.Fatalf("AllowReconnect(after cooldown) error = %v, want nil", err)
	}
	if got := b.State(); got != "half_open" {
		t.Fatalf("State() = %s, want half_open", got)
	}
	if err := b.RecordReconnect(nil); err != nil {
		t.Fatalf("RecordReconnect(success probe) error = %v, want nil", err)
	}
	if got := b.State(); got != "closed" {
		t.Fatalf("State() = %s, want closed after recovery", got)
	}
	if rem := b.CooldownRemaining(); rem != 0 {
		t.Fatalf("CooldownRemaining() = %s, want 0 after recovery", rem)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(true, 1)
	b.SetRecovery(120*time.Millisecond, 1)

	if err := b.RecordReconnect(errors.New("dial failed")); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("RecordReconnect(trip) error = %v, want ErrCircuitOpen", err)
	}
	time.Sleep(150 * time.Millisecond)
	if err := b.AllowReconnect(); err != nil {
		t.Fatalf("AllowReconnect(after cooldown) error = %v, want nil", err)
	}
	if err := b.RecordReconnect(errors.New("probe failed")); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("RecordReconnect(half-open failure) error = %v, want ErrCircuitOpen", err)
	}
	if err := b.AllowReconnect(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("AllowReconnect() error = %v, want ErrCircuitOpen after re-open", err)
	}
}

func TestBreakerDisabledAllowsEverything(t *testing.T) {
	b := NewBreaker(false, 1)
	for i := 0; i < 5; i++ {
		if err := b.RecordReconnect(errors.New("dial failed")); err != nil {
			t.Fatalf("RecordReconnect() error = %v with disabled breaker", err)
		}
	}
	if err := b.AllowReconnect(); err != nil {
		t.Fatalf("AllowReconnect() error = %v with disabled breaker", err)
	}
}

func TestBreakerNilReceiverIsSafe(t *testing.T) {
	var b *Breaker
	if err := b.AllowReconnect(); err != nil {
		t.Fatalf("nil AllowReconnect() error = %v", err)
	}
	if err := b.RecordReconnect(errors.New("x")); err != nil {
		t.Fatalf("nil RecordReconnect() error = %v", err)
	}
	b.SetRecovery(time.Second, 1)
	b.SetAlerter(nil)
}
