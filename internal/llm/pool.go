package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the static parameters of a pool. A pool never picks up
// config changes while running; construct a new pool to apply them.
type Config struct {
	// BaseURL is the OpenAI-compatible API base, e.g.
	// "http://127.0.0.1:8080/v1". Required.
	BaseURL string

	// APIKey is the bearer token for the Authorization header.
	APIKey string

	// Model is the model name sent in the request body. Required.
	Model string

	// MaxInflight bounds concurrent HTTP requests. Default: 8.
	MaxInflight int

	// RequestTimeout bounds one logical request including all retries
	// and backoff sleeps. Default: 300s.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after the initial attempt,
	// so a request makes at most MaxRetries+1 attempts. Zero disables
	// retrying.
	MaxRetries int

	// BackoffBase is the nominal delay before the first retry.
	// Default: 1s.
	BackoffBase time.Duration

	// BackoffCap caps the nominal backoff delay. Default: 60s.
	BackoffCap time.Duration

	// HonorRetryAfter makes a 429 Retry-After hint replace the computed
	// backoff when the hint is larger.
	HonorRetryAfter bool

	// ShutdownGrace is how long Close waits for in-flight requests
	// before force-canceling them. Default: 30s.
	ShutdownGrace time.Duration

	// ReasoningEffort is a default reasoning effort level applied to
	// requests that do not set their own. Optional.
	ReasoningEffort string
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxInflight <= 0 {
		c.MaxInflight = 8
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 300 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 60 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 30 * time.Second
	}
}

// Stats is a snapshot of the pool's cumulative usage counters. Counters
// grow monotonically over the pool's lifetime.
type Stats struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64

	// Requests counts successful completions; Retries counts backoff
	// sleeps taken across all requests.
	Requests int64
	Retries  int64
}

// Pool is a shared LLM client with bounded in-flight requests. It is safe
// for concurrent use. Construct with Open and tear down with Close.
type Pool struct {
	cfg    Config
	client *http.Client
	gate   *gate
	policy *retryPolicy

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	requests         atomic.Int64
	retries          atomic.Int64
}

// Open validates cfg, applies defaults, and establishes the shared
// transport.
func Open(cfg Config) (*Pool, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	cfg.applyDefaults()

	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
		MaxIdleConnsPerHost: cfg.MaxInflight,
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:     cfg,
		client:  &http.Client{Transport: transport},
		gate:    newGate(cfg.MaxInflight),
		policy:  newRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffCap, cfg.HonorRetryAfter, nil),
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Request sends a chat completion request, respecting the concurrency
// limit. Transient failures (429, 5xx, network errors, timeouts) are
// retried with exponential backoff while the request holds its gate slot;
// the caller sees only the final outcome. The returned error, when
// non-nil, is always a *Error.
func (p *Pool) Request(ctx context.Context, req Request) (*Response, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, newError(KindPoolClosed, 0, "pool is closed")
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	body, berr := p.buildBody(req)
	if berr != nil {
		berr.Attempts = 0
		return nil, berr
	}

	// One overall deadline covers admission, every attempt, and every
	// backoff sleep. Close force-cancels via baseCtx after the grace
	// period.
	ctx, cancelReq := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancelReq()
	stop := context.AfterFunc(p.baseCtx, cancelReq)
	defer stop()

	tk, err := p.gate.acquire(ctx)
	if err != nil {
		return nil, p.ctxError(ctx, 0)
	}
	defer tk.release()

	// The slot is held across retries; a retrying request never
	// re-queues behind other waiters.
	var attempts int
	for {
		attempts++
		resp, aerr := p.doAttempt(ctx, body)
		if aerr == nil {
			p.requests.Add(1)
			p.promptTokens.Add(int64(resp.PromptTokens))
			p.completionTokens.Add(int64(resp.CompletionTokens))
			return resp, nil
		}
		aerr.Attempts = attempts

		// If the pool or the deadline killed the attempt, surface
		// that instead of the transport-level symptom.
		if ctx.Err() != nil {
			return nil, p.ctxError(ctx, attempts)
		}

		delay, retry := p.policy.next(attempts, aerr)
		if !retry {
			if aerr.Retryable() {
				return nil, &Error{
					Kind:     KindRetriesExhausted,
					Status:   aerr.Status,
					Attempts: attempts,
					msg:      fmt.Sprintf("gave up after %d attempts", attempts),
					err:      aerr,
				}
			}
			return nil, aerr
		}

		// Never sleep past the deadline; stop early instead.
		if dl, ok := ctx.Deadline(); ok && time.Until(dl) < delay {
			return nil, &Error{
				Kind:     KindTimeout,
				Attempts: attempts,
				msg:      "deadline would elapse before next attempt",
				err:      aerr,
			}
		}

		p.retries.Add(1)
		select {
		case <-ctx.Done():
			return nil, p.ctxError(ctx, attempts)
		case <-time.After(delay):
		}
	}
}

// Close stops admitting new requests, waits up to ShutdownGrace for
// in-flight requests to reach a terminal outcome, force-cancels any
// stragglers, and releases the transport. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		p.cancel()
		<-done
	}
	p.cancel()
	p.client.CloseIdleConnections()
}

// Stats returns the cumulative usage counters. It never blocks in-flight
// requests.
func (p *Pool) Stats() Stats {
	prompt := p.promptTokens.Load()
	completion := p.completionTokens.Load()
	return Stats{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Requests:         p.requests.Load(),
		Retries:          p.retries.Load(),
	}
}

// Inflight returns the number of currently admitted requests.
func (p *Pool) Inflight() int { return p.gate.inflight() }

// PeakInflight returns the highest concurrent admission count observed
// over the pool's lifetime.
func (p *Pool) PeakInflight() int { return p.gate.peak() }

// Model returns the configured model name.
func (p *Pool) Model() string { return p.cfg.Model }

// ctxError maps a done context to the error taxonomy: pool teardown wins
// over the request deadline, which wins over plain cancellation.
func (p *Pool) ctxError(ctx context.Context, attempts int) *Error {
	if p.baseCtx.Err() != nil {
		e := newError(KindPoolClosed, 0, "pool closed while request in flight")
		e.Attempts = attempts
		return e
	}
	e := wrapError(KindTimeout, "request deadline elapsed", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		e.msg = "request canceled"
	}
	e.Attempts = attempts
	return e
}

// WithRandSource replaces the retry policy's random source. Intended for
// deterministic backoff in tests.
func (p *Pool) WithRandSource(src rand.Source) *Pool {
	p.policy = newRetryPolicy(p.cfg.MaxRetries, p.cfg.BackoffBase, p.cfg.BackoffCap, p.cfg.HonorRetryAfter, src)
	return p
}
