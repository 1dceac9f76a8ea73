package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTickerRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	err := NewTicker(time.Hour).Run(ctx, func(ctx context.Context, at time.Time) {
		runs++
		if at.IsZero() {
			t.Errorf("tick time must be set")
		}
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runs != 1 {
		t.Fatalf("expected one immediate run, got %d", runs)
	}
}

func TestNewTickerClampsInterval(t *testing.T) {
	t.Parallel()

	if got := NewTicker(time.Second).interval; got != time.Minute {
		t.Fatalf("expected one minute, got %v", got)
	}
	if err := NewTicker(time.Hour).Run(context.Background(), nil); err != nil {
		t.Fatalf("nil job must be a no-op: %v", err)
	}
}
