package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrPollExhausted is returned by Poll when maxAttempts checks ran without fn
// reporting completion.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// Poll waits for interval and then calls fn, repeating until fn reports done,
// fn returns an error, or maxAttempts calls have been made. maxAttempts <= 0
// means no limit. Attempts start at least interval apart however long fn
// takes. fn receives the current attempt number (0-indexed).
// If the context is cancelled, Poll returns the context error immediately.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, fn func(attempt int) (done bool, err error)) error {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()

	for attempt := 0; maxAttempts <= 0 || attempt < maxAttempts; attempt++ {
		timer := time.NewTimer(limiter.Reserve().Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, ErrPollExhausted)
}
