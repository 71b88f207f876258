package pipeline

import (
	"context"
	"time"
)

// Sleeper is the single suspension point used for poll, batch, item and
// window delays. Tests replace it to run without wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// RealSleeper waits on a timer and returns early when ctx is done
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func sleeperOrDefault(s Sleeper) Sleeper {
	if s == nil {
		return RealSleeper{}
	}
	return s
}
