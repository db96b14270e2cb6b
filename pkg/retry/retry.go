package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
)

// Policy retries an operation a fixed number of times with a fixed delay between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Logger   *zap.Logger
	// OnRetry, when set, is called before each retry with the attempt that just failed.
	OnRetry func(name string, attempt int, err error)
}

// New returns a policy, substituting defaults for non-positive attempts and negative delays.
func New(attempts int, delay time.Duration, logger *zap.Logger) Policy {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if delay < 0 {
		delay = defaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Policy{Attempts: attempts, Delay: delay, Logger: logger}
}

// Do runs op until it succeeds, returns an error retryable rejects, or attempts run out.
// The last error is returned unchanged. Cancelling ctx stops further attempts.
func (p Policy) Do(ctx context.Context, name string, op func(context.Context) error, retryable func(error) bool) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) || attempt == attempts {
			return err
		}

		logger.Warn("operation failed, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if p.OnRetry != nil {
			p.OnRetry(name, attempt, err)
		}

		if !sleep(ctx, p.Delay) {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
