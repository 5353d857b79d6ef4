package llm

import (
	"context"
	"time"
)

const (
	maxAttempts = 3
	retryDelay  = 5 * time.Second
)

// RetryPolicy retries an operation a bounded number of times with a fixed
// delay between attempts. There is no backoff and no jitter.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep waits between attempts. Nil means time.Sleep.
	Sleep func(time.Duration)

	// OnRetry, if set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns the default policy: 3 attempts, 5s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       retryDelay,
	}
}

// Do runs op until it succeeds or the attempts are used up. It returns the
// number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		// Don't wait after last attempt
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		sleep(p.Delay)
	}
	return attempts, lastErr
}
