// SPDX-License-Identifier: Apache-2.0
// Package resilience provides the timeout and retry boundaries used around
// module invocations and composition runs.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its deadline. Callers
// detect it with errors.Is and map it to their own error codes.
var ErrTimeout = errors.New("operation exceeded timeout")

// WithTimeoutResult executes fn with a deadline boundary. A zero duration
// means no limit. The underlying timer is released on both the success and
// the timeout path; the worker goroutine writes into a buffered channel so
// it never leaks even when the result is abandoned. A panic inside fn is
// converted to an error rather than taking down the process.
func WithTimeoutResult[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{zero, fmt.Errorf("panic during execution: %v", r)}
			}
		}()
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w after %s: %v", ErrTimeout, d, ctx.Err())
	case res := <-done:
		return res.value, res.err
	}
}
