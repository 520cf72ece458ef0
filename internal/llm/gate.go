package llm

import (
	"context"
	"sync"
)

// gate bounds the number of concurrently admitted requests. Admission is
// channel-based: waiters are served in roughly FIFO order but no ordering
// is guaranteed beyond eventual admission.
type gate struct {
	sem chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
}

func newGate(n int) *gate {
	return &gate{sem: make(chan struct{}, n)}
}

// acquire blocks until a slot is free or ctx is done. On success it
// returns a ticket that must be released exactly once.
func (g *gate) acquire(ctx context.Context) (*ticket, error) {
	select {
	case g.sem <- struct{}{}:
	default:
		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	g.mu.Unlock()

	return &ticket{g: g}, nil
}

// inflight returns the number of currently admitted requests.
func (g *gate) inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// peak returns the highest concurrent admission count observed.
func (g *gate) peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maxActive
}

// ticket is a held gate slot.
type ticket struct {
	g        *gate
	released bool
	mu       sync.Mutex
}

// release returns the slot to the gate. Releasing a ticket twice is a
// programming error and panics.
func (t *ticket) release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		panic("llm: gate ticket released twice")
	}
	t.released = true
	t.mu.Unlock()

	<-t.g.sem
	t.g.mu.Lock()
	t.g.active--
	t.g.mu.Unlock()
}
