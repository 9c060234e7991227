package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by WithTimeout when fn outlives its deadline.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout gives fn at most timeout to finish. On expiry it returns
// ErrTimeout without waiting; fn sees its context cancelled and should stop
// on its own. A timeout <= 0 calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(ctx) }()

	select {
	case err := <-result:
		if err != nil && ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
