package utils

import (
	"context"
	"errors"
	"time"
)

var ErrPollTimeout = errors.New("poll timeout exceeded")

// ContextSleep returns nil if the context was cancelled before d elapsed.
func ContextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}

// PollUntil calls check every interval until it reports done, returns an error,
// or maxWait elapses. It never blocks longer than maxWait.
func PollUntil(ctx context.Context, interval, maxWait time.Duration, check func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if ContextSleep(ctx, interval) == nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrPollTimeout
			}
			return ctx.Err()
		}
	}
}
