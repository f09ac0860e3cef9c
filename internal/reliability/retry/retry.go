package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter spreads each wait by up to this fraction in either direction.
	Jitter float64
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except errors marked Permanent.
	Retryable func(error) bool
}

// DefaultPolicy is used for startup connections and sweeper passes.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (p *Policy) shouldRetry(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return p.Retryable == nil || p.Retryable(err)
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts or
// ctx ends. The error wraps the last failure.
func Do[T any](ctx context.Context, p *Policy, log *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		p = DefaultPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !p.shouldRetry(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
		}

		wait := p.jittered(Backoff(attempt-1, p))
		log.WarnContext(ctx, "operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the un-jittered wait before retry n (zero based).
func Backoff(n int, p *Policy) time.Duration {
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(n)))
	if d > p.MaxBackoff || d < 0 {
		return p.MaxBackoff
	}
	return d
}

func (p *Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
