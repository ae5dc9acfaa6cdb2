// Package retry executes fallible upstream calls with bounded exponential
// backoff and classifies failures for the UI.
package retry

import (
	"context"
	"errors"
	"time"
)

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures Execute
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// Sleep defaults to a timer-based wait.
	Sleep SleepFunc
	// OnRetry is called before each suspension.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Result reports the outcome of Execute
type Result[T any] struct {
	Success  bool
	Data     T
	Err      error
	Attempts int
}

// DefaultOptions returns 3 attempts, 1s initial delay, 10s cap, doubling.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = d.InitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.BackoffMultiplier <= 0 {
		o.BackoffMultiplier = d.BackoffMultiplier
	}
	if o.Sleep == nil {
		o.Sleep = TimerSleep
	}
	return o
}

// Execute invokes op until it succeeds, fails terminally, or MaxAttempts is reached.
// 400, 401 and 403 responses are never retried. Callers own the idempotency of op.
func Execute[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) Result[T] {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		data, err := op(ctx)
		if err == nil {
			return Result[T]{Success: true, Data: data, Attempts: attempt}
		}
		lastErr = err

		if IsTerminalStatus(StatusCode(err)) || errors.Is(err, context.Canceled) {
			return Result[T]{Err: err, Attempts: attempt}
		}
		if attempt == opts.MaxAttempts {
			return Result[T]{Err: err, Attempts: attempt}
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if serr := opts.Sleep(ctx, delay); serr != nil {
			return Result[T]{Data: zero, Err: errors.Join(err, serr), Attempts: attempt}
		}
		delay = nextDelay(delay, opts.BackoffMultiplier, opts.MaxDelay)
	}

	return Result[T]{Err: lastErr, Attempts: opts.MaxAttempts}
}

// Do runs Execute and converts a failed Result into a *Failure.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	res := Execute(ctx, op, opts)
	if res.Success {
		return res.Data, nil
	}
	return res.Data, NewFailure(res.Err, res.Attempts)
}

func nextDelay(d time.Duration, multiplier float64, max time.Duration) time.Duration {
	next := time.Duration(float64(d) * multiplier)
	if next > max || next <= 0 {
		return max
	}
	return next
}

// TimerSleep waits on a timer and stops it early when ctx is done.
func TimerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
