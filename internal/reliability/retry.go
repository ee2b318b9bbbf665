package reliability

import (
	"context"
	"math/rand"
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/platform/httpx"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// RetryPolicy controls the backoff executor. A nil Classifier falls back to
// the shared transient classifier in platform/httpx.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Classifier func(error) bool
}

// CriticalPolicy is for expensive calls worth waiting on (full chapter or
// fact-extraction generations).
func CriticalPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// FastPolicy is for cheap calls where giving up early is preferable.
func FastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (p RetryPolicy) classify(err error) bool {
	if p.Classifier != nil {
		return p.Classifier(err)
	}
	return httpx.IsRetryableError(err)
}

// Delay computes the sleep before attempt+1: min(base * 2^attempt, max) with
// +/-25% jitter, never exceeding max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	jittered := time.Duration(float64(d) * (0.75 + rand.Float64()*0.5))
	if p.MaxDelay > 0 && jittered > p.MaxDelay {
		jittered = p.MaxDelay
	}
	return jittered
}

// Retry runs operations with classified-transient retry and exponential
// backoff. Non-retryable errors propagate immediately without consuming an
// attempt's delay.
func Retry[T any](ctx context.Context, log *logger.Logger, name string, p RetryPolicy, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err

		if !p.classify(err) {
			return zero, attempt, err
		}
		if attempt == p.MaxRetries {
			break
		}

		sleepFor := p.Delay(attempt)
		if log != nil {
			log.Warn("retrying after transient failure",
				"operation", name,
				"attempt", attempt+1,
				"max_retries", p.MaxRetries,
				"sleep", sleepFor.String(),
				"error", err.Error(),
			)
		}
		if err := sleepCtx(ctx, sleepFor); err != nil {
			return zero, attempt + 1, err
		}
	}
	return zero, p.MaxRetries, lastErr
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
