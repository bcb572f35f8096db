package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn by timeout and hands control back at the deadline
// even when fn ignores ctx; fn then finishes on its own goroutine and its
// result is dropped. A non-positive timeout calls fn inline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	expired := fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
	bounded, cancel := context.WithTimeoutCause(ctx, timeout, expired)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(bounded) }()
	select {
	case err := <-result:
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return context.Cause(bounded)
	}
}
