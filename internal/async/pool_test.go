package async

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() Option { return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func TestPoolBoundsConcurrency(t *testing.T) {
	p, err := New(WithWorkers(3), WithName("test"), quiet())
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.EqualValues(t, 20, p.Stats().Submitted)
	assert.Equal(t, 3, p.Workers())
}

func TestPoolSkipsWhenContextDone(t *testing.T) {
	p, err := New(quiet())
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err = p.Submit(ctx, func() { ran = true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.EqualValues(t, 1, p.Stats().Skipped)
}

func TestPoolRecoversPanics(t *testing.T) {
	p, err := New(WithWorkers(1), quiet())
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() {
		defer close(done)
		panic("boom")
	}))
	<-done

	ok := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(ok) }))
	<-ok
	assert.Eventually(t, func() bool { return p.Stats().Panics == 1 }, time.Second, time.Millisecond)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolClosed(t *testing.T) {
	p, err := New(quiet())
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrClosed)
}
