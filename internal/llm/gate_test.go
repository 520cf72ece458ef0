package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBoundsConcurrency(t *testing.T) {
	g := newGate(3)

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk, err := g.acquire(context.Background())
			require.NoError(t, err)
			n := cur.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
			tk.release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 3, g.peak())
	assert.Equal(t, 0, g.inflight())
}

func TestGateAcquireCanceled(t *testing.T) {
	g := newGate(1)
	tk, err := g.acquire(context.Background())
	require.NoError(t, err)
	defer tk.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.inflight())
}

func TestGateDoubleReleasePanics(t *testing.T) {
	g := newGate(1)
	tk, err := g.acquire(context.Background())
	require.NoError(t, err)
	tk.release()
	assert.Panics(t, func() { tk.release() })
}
