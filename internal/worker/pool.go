// Package worker runs blocking model calls on a bounded goroutine pool and
// joins each one with a deadline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrTimeout is returned when a task does not finish within the pool timeout.
var ErrTimeout = errors.New("timed out")

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Pool is a fixed-size worker pool. It is safe for concurrent use.
type Pool struct {
	pool    *ants.Pool
	timeout time.Duration
}

// New creates a pool with size workers. A size of zero or less means
// runtime.NumCPU(); a timeout of zero or less disables the deadline.
func New(size int, timeout time.Duration) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{pool: p, timeout: timeout}, nil
}

// Timeout reports the per-task deadline.
func (p *Pool) Timeout() time.Duration {
	return p.timeout
}

// Cap reports the pool size.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running reports the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool. Tasks already running finish in the background.
func (p *Pool) Release() {
	p.pool.Release()
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn on p and waits for it, the pool timeout, or ctx, whichever comes
// first. On timeout the task keeps running and its result is discarded; fn
// receives a context that is canceled at that point. A panic in fn is
// returned as *PanicError.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := make(chan result[T], 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: &PanicError{Value: r}}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}

	// Submit blocks while every worker is busy; waiting for a slot counts
	// against the deadline too.
	go func() {
		if err := p.pool.Submit(task); err != nil {
			done <- result[T]{err: fmt.Errorf("failed to submit task: %w", err)}
		}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		return zero, ctx.Err()
	}
}
