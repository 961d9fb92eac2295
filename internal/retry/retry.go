// Package retry wraps a single backend call with bounded retries and
// exponential backoff. It is backend-agnostic: errors advertise their own
// class through the Retryable() method, and anything else is treated as
// worth retrying since the caller's budget is bounded anyway.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// classified is implemented by errors that know whether a retry can help.
type classified interface {
	Retryable() bool
}

// ExhaustedError is returned after the retry budget is spent on retryable
// failures. It wraps the last observed error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Sleeper lets tests observe backoff delays without real waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor runs operations under a fixed retry policy.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
	Sleep       Sleeper
}

func NewExecutor(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{MaxAttempts: maxAttempts, BaseDelay: baseDelay, Logger: logger, Sleep: defaultSleep}
}

// Do invokes op up to MaxAttempts times. Terminal errors abort immediately;
// retryable errors sleep BaseDelay * 2^(attempt-1) between attempts. After
// the budget is spent the last error is wrapped in an ExhaustedError.
func Do[T any](ctx context.Context, ex *Executor, label string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	sleep := ex.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	for attempt := 1; attempt <= ex.MaxAttempts; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var c classified
		if errors.As(err, &c) && !c.Retryable() {
			ex.Logger.Error("retry.terminal",
				"op", label, "attempt", attempt, "error", err)
			return zero, err
		}

		ex.Logger.Warn("retry.attempt_failed",
			"op", label, "attempt", attempt, "max_attempts", ex.MaxAttempts, "error", err)

		if attempt == ex.MaxAttempts {
			break
		}
		delay := ex.BaseDelay * (1 << (attempt - 1))
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Attempts: ex.MaxAttempts, Last: lastErr}
}
