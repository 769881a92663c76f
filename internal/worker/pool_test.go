package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, size int, timeout time.Duration) *Pool {
	t.Helper()
	p, err := New(size, timeout)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestDo_ReturnsResult(t *testing.T) {
	p := newPool(t, 2, time.Second)

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDo_PropagatesError(t *testing.T) {
	p := newPool(t, 1, time.Second)
	want := errors.New("model failed")

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		return 0, want
	})
	assert.ErrorIs(t, err, want)
}

func TestDo_Timeout(t *testing.T) {
	p := newPool(t, 1, 20*time.Millisecond)
	var sawCancel atomic.Bool
	finished := make(chan struct{})

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		defer close(finished)
		<-ctx.Done()
		sawCancel.Store(true)
		return 1, nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "timed out")

	<-finished
	assert.True(t, sawCancel.Load())
}

func TestDo_CallerCancel(t *testing.T) {
	p := newPool(t, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestDo_RecoversPanic(t *testing.T) {
	p := newPool(t, 1, time.Second)

	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		panic("boom")
	})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)

	// The worker survives the panic.
	got, err := Do(context.Background(), p, func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestDo_BoundedConcurrency(t *testing.T) {
	p := newPool(t, 2, time.Second)
	var active, peak atomic.Int32

	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
				n := active.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				return 0, nil
			})
			errs <- err
		}()
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 2, p.Cap())
}

func TestNew_DefaultSize(t *testing.T) {
	p := newPool(t, 0, 0)
	assert.Positive(t, p.Cap())
	assert.Equal(t, time.Duration(0), p.Timeout())
}
