package llm

import (
	"math/rand/v2"
	"sync"
	"time"
)

// retryPolicy decides whether a failed attempt should be retried and how
// long to wait before the next one.
//
// The nominal delay doubles each attempt, capped at cap:
//
//	delay = min(cap, base * 2^(attempt-1))
//
// Jitter draws the actual delay uniformly from [delay/2, delay] to keep
// concurrent requests from retrying in lockstep. The random source is
// injectable so tests can make delays deterministic.
type retryPolicy struct {
	maxRetries      int
	base            time.Duration
	cap             time.Duration
	honorRetryAfter bool

	mu  sync.Mutex
	rng *rand.Rand
}

func newRetryPolicy(maxRetries int, base, cap time.Duration, honorRetryAfter bool, src rand.Source) *retryPolicy {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>32)
	}
	return &retryPolicy{
		maxRetries:      maxRetries,
		base:            base,
		cap:             cap,
		honorRetryAfter: honorRetryAfter,
		rng:             rand.New(src),
	}
}

// next inspects the error from attempt number attempt (1-based) and
// returns the backoff delay and true when the request should be retried,
// or false when the error must surface.
func (p *retryPolicy) next(attempt int, err *Error) (time.Duration, bool) {
	if !err.Retryable() {
		return 0, false
	}
	if attempt > p.maxRetries {
		return 0, false
	}

	delay := p.nominal(attempt)

	// Jitter in [delay/2, delay].
	half := delay / 2
	p.mu.Lock()
	delay = half + time.Duration(p.rng.Int64N(int64(half)+1))
	p.mu.Unlock()

	if p.honorRetryAfter && err.RetryAfter > delay {
		delay = err.RetryAfter
	}
	return delay, true
}

// nominal returns the pre-jitter delay for the given attempt number.
func (p *retryPolicy) nominal(attempt int) time.Duration {
	delay := p.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.cap || delay <= 0 {
			return p.cap
		}
	}
	if delay > p.cap {
		return p.cap
	}
	return delay
}
