package service

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry loop for transient provider failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// retryTransient runs fn up to policy.MaxAttempts times. Only
// ErrTransientProvider is retried; any other outcome returns immediately.
// The delay doubles after each attempt, starting at InitialBackoff, with
// jitter so parallel units do not retry in lockstep. Cancellation is honored
// while waiting.
func retryTransient(ctx context.Context, policy RetryPolicy, sleep func(context.Context, time.Duration) error, fn func() error) error {
	backoff := policy.InitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrTransientProvider) {
			return err
		}
		if attempt >= policy.MaxAttempts {
			return err
		}
		if serr := sleep(ctx, withJitter(backoff)); serr != nil {
			return serr
		}
		backoff *= 2
	}
}

// withJitter spreads a delay out by up to half its base value
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// sleepContext waits for d unless the context ends first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
