package scheduler

import (
	"context"
	"time"
)

// Job is one scheduled run. It receives the tick time.
type Job func(ctx context.Context, at time.Time)

// Ticker runs a job immediately and then at a fixed interval.
type Ticker struct {
	interval time.Duration
}

// NewTicker builds a scheduler. Intervals below one minute are raised to
// one minute.
func NewTicker(interval time.Duration) *Ticker {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Ticker{interval: interval}
}

// Run blocks until ctx is done. Runs never overlap; ticks missed during a
// long run collapse into one.
func (t *Ticker) Run(ctx context.Context, job Job) error {
	if job == nil {
		return nil
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	job(ctx, time.Now())
	for {
		select {
		case at := <-ticker.C:
			job(ctx, at)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
