package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsMatchesDecoratedCopies(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := fmt.Errorf("start: %w", ErrCooldownActive.RetryAfter(at))

	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected wrapped copy to match sentinel")
	}
	if errors.Is(err, ErrAttemptLimitExceeded) {
		t.Fatalf("different code must not match")
	}
	e, ok := As(err)
	if !ok || e.RetryAt == nil || !e.RetryAt.Equal(at) {
		t.Fatalf("retry-at lost: %+v", e)
	}
	if ErrCooldownActive.RetryAt != nil {
		t.Fatalf("sentinel was mutated")
	}
}

func TestErrorString(t *testing.T) {
	if got := ErrUnitLocked.With("unit 2").Error(); got != "unit_locked: unit 2" {
		t.Fatalf("got %q", got)
	}
	if ErrUnitLocked.Kind.String() != "precondition" {
		t.Fatalf("kind = %s", ErrUnitLocked.Kind)
	}
}
