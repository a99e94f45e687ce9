package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "gmapsimages/pkg/errors"
	"gmapsimages/pkg/logger"
)

// Operation is a function that might need retrying. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context, attempt int) (T, error)

// Policy is a bounded retry policy. The same value type drives stale element
// reads, byte fetches and whole pipeline attempts.
type Policy struct {
	// Name identifies the policy in log output
	Name string
	// MaxAttempts is the maximum number of attempts (must be at least 1)
	MaxAttempts int
	// Backoff computes the pause between attempts
	Backoff Backoff
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// ExhaustedError is returned when every attempt of a policy failed
type ExhaustedError struct {
	Policy   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Policy != "" {
		return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Policy, e.Attempts, e.Err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Constant returns a policy with a fixed delay between attempts
func Constant(name string, attempts int, delay time.Duration) Policy {
	return Policy{
		Name:        name,
		MaxAttempts: attempts,
		Backoff:     FixedBackoff{Interval: delay},
		RetryIf:     DefaultRetryIf,
	}
}

// WithLogger returns a copy of the policy that logs through l
func (p Policy) WithLogger(l logger.Logger) Policy {
	p.Logger = l
	return p
}

// WithRetryIf returns a copy of the policy with a different retry predicate
func (p Policy) WithRetryIf(fn func(error) bool) Policy {
	p.RetryIf = fn
	return p
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}

	return true
}

// RetryAny retries every error. Do still stops as soon as its own context is
// done.
func RetryAny(err error) bool {
	return err != nil
}

// IsExhausted reports whether err came from a policy running out of attempts
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Do executes an operation under the policy
func Do(ctx context.Context, p Policy, op Operation) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = FixedBackoff{}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
			}
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 && p.Logger != nil {
				p.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"policy":  p.Name,
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		// Only the caller's context ends the loop early
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctxErr, err))
		}

		if !retryIf(err) {
			if p.Logger != nil {
				p.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"policy": p.Name,
					"error":  err.Error(),
				})
			}
			return err
		}

		if attempt == maxAttempts {
			break
		}

		delay := backoff.Delay(attempt)

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if p.Logger != nil {
			p.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"policy":       p.Name,
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": maxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			if p.Logger != nil {
				p.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"policy":  p.Name,
					"attempt": attempt,
					"reason":  err.Error(),
				})
			}
			return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
		}
	}

	if p.Logger != nil {
		p.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
			"policy":     p.Name,
			"attempts":   maxAttempts,
			"last_error": lastErr.Error(),
		})
	}
	return &ExhaustedError{Policy: p.Name, Attempts: maxAttempts, Err: lastErr}
}

// DoWithResult executes an operation that returns a result under the policy
func DoWithResult[T any](ctx context.Context, p Policy, op OperationWithResult[T]) (T, error) {
	var result T

	err := Do(ctx, p, func(ctx context.Context, attempt int) error {
		var opErr error
		result, opErr = op(ctx, attempt)
		return opErr
	})

	return result, err
}
