package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retrier runs an attempt up to MaxAttempts times. After failed attempt n it
// waits n*Backoff before trying again.
type Retrier struct {
	MaxAttempts int
	Backoff     time.Duration

	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. maxAttempts below 1 is treated as 1.
func NewRetrier(maxAttempts int, backoff time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		logger:      logger.With("component", "retrier"),
		sleep:       sleepCtx,
	}
}

// Do calls attempt with 1-based attempt numbers until it succeeds or the
// attempts run out. The error of the final attempt is returned as is.
func (r *Retrier) Do(ctx context.Context, attempt func(ctx context.Context, n int) error) error {
	var lastErr error
	for n := 1; n <= r.MaxAttempts; n++ {
		lastErr = attempt(ctx, n)
		if lastErr == nil {
			if n > 1 {
				r.logger.Info("attempt succeeded after retry", "attempt", n)
			}
			return nil
		}

		r.logger.Warn("attempt failed",
			"attempt", n,
			"max_attempts", r.MaxAttempts,
			"error", lastErr,
		)
		if n == r.MaxAttempts {
			break
		}

		wait := time.Duration(n) * r.Backoff
		r.logger.Info("retrying", "in", wait, "next_attempt", n+1)
		if err := r.sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry aborted: %w (last attempt: %w)", err, lastErr)
		}
	}

	r.logger.Error("all attempts failed", "attempts", r.MaxAttempts, "error", lastErr)
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
