package compute

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to attempts times with exponential backoff: the delay
// starts at base and doubles up to cap. The coordinator itself never retries;
// this wrapper is applied at call sites that want it. The final failure wraps
// the last underlying error together with the attempt count.
func Retry(ctx context.Context, attempts int, base, cap time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if cap > 0 && delay > cap {
				delay = cap
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
