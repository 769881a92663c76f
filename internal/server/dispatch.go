package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ironsheep/vision-mcp/internal/logging"
	"github.com/ironsheep/vision-mcp/internal/vision"
	"github.com/ironsheep/vision-mcp/internal/worker"
)

// Dispatcher resolves tool calls against a Registry and runs them on a
// worker pool. Every call produces exactly one CallToolResult.
type Dispatcher struct {
	registry *Registry
	pool     *worker.Pool
	log      logging.Logger
}

// NewDispatcher returns a dispatcher. A nil pool runs tools on the calling
// goroutine without a deadline.
func NewDispatcher(registry *Registry, pool *worker.Pool, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Default
	}
	return &Dispatcher{registry: registry, pool: pool, log: log}
}

// Registry returns the tool table the dispatcher serves.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Call runs the named tool. Failures, panics included, come back as error
// results, never as Go errors.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) *CallToolResult {
	handler, ok := d.registry.Lookup(name)
	if !ok {
		d.log.Warnf("call to unknown tool %q", name)
		return FormatError(vision.ToolNotFound(name))
	}

	start := time.Now()
	result, err := d.run(ctx, handler, args)
	if err != nil {
		d.log.Warnf("tool %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		return FormatError(err)
	}
	d.log.Infof("tool %s completed in %s", name, time.Since(start).Round(time.Millisecond))
	return Format(result)
}

func (d *Dispatcher) run(ctx context.Context, handler Handler, args json.RawMessage) (res *Result, err error) {
	if d.pool == nil {
		defer func() {
			if r := recover(); r != nil {
				err = classify(&worker.PanicError{Value: r})
			}
		}()
		res, err = handler(ctx, args)
		return res, classify(err)
	}
	if busy := d.pool.Running(); busy >= d.pool.Cap() {
		d.log.Warnf("all %d workers busy, call queued (timeout %s)", busy, d.pool.Timeout())
	}
	res, err = worker.Do(ctx, d.pool, func(ctx context.Context) (*Result, error) {
		return handler(ctx, args)
	})
	return res, classify(err)
}

// classify maps infrastructure failures onto the tool error kinds.
func classify(err error) error {
	var pe *worker.PanicError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &pe):
		return vision.ModelInvocationFailed("internal error", err)
	case errors.Is(err, worker.ErrTimeout):
		return vision.ModelInvocationFailed("model invocation", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		var ve *vision.Error
		if errors.As(err, &ve) {
			return err
		}
		return vision.ModelInvocationFailed("request canceled", err)
	}
	return err
}
