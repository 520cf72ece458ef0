package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/krello/mathpipe/internal/classify"
	"github.com/krello/mathpipe/internal/config"
	"github.com/krello/mathpipe/internal/llm"
	"github.com/krello/mathpipe/internal/metrics"
	"github.com/krello/mathpipe/internal/prompts"
)

// defaultWaveSize is how many records are dispatched between runtime
// config reloads.
const defaultWaveSize = 32

// RuntimeDefaults lists the hot-reloadable settings and their initial
// values. Edit the runtime config file mid-run and the next wave picks
// the changes up.
func RuntimeDefaults(cfg *config.Config) map[string]any {
	return map[string]any{
		"max_inflight": cfg.MaxInflight,
		"temperature":  cfg.Temperature,
		"max_tokens":   cfg.MaxTokens,
		"threshold":    cfg.Threshold,
		"wave_size":    defaultWaveSize,
	}
}

// Summary aggregates one stage run.
type Summary struct {
	RunID     string
	Stage     string
	Total     int
	Succeeded int
	Failed    int

	// Disagreements and Sources count consensus metadata per field.
	Disagreements map[string]int
	Sources       map[string]map[string]int

	Usage llm.Stats
}

func newSummary(stage string, total int) *Summary {
	return &Summary{
		RunID:         uuid.NewString(),
		Stage:         stage,
		Total:         total,
		Disagreements: make(map[string]int),
		Sources:       make(map[string]map[string]int),
	}
}

func (s *Summary) observe(rec *Record) {
	if rec.Structure == nil {
		return
	}
	if dm := rec.Structure.DomainMeta; dm != nil {
		metrics.DomainDecisionsTotal.WithLabelValues(rec.Structure.Domain, dm.Reason).Inc()
	}
	for field, m := range rec.Structure.ConsensusMeta {
		if m.Disagreement {
			s.Disagreements[field]++
		}
		if s.Sources[field] == nil {
			s.Sources[field] = make(map[string]int)
		}
		s.Sources[field][m.Source]++
	}
}

// DisagreementRate returns the fraction of succeeded records that
// disagreed on the given field.
func (s *Summary) DisagreementRate(field string) float64 {
	if s.Succeeded == 0 {
		return 0
	}
	return float64(s.Disagreements[field]) / float64(s.Succeeded)
}

// Runner executes pipeline stages against a shared LLM pool.
type Runner struct {
	cfg     *config.Config
	runtime *config.Runtime
	logw    io.Writer

	guidance string

	mu          sync.Mutex
	pool        *llm.Pool
	curInflight int
	usageBase   llm.Stats
	flushed     llm.Stats
}

// NewRunner opens the LLM pool and prepares a runner. rt may be nil when
// no runtime config file is configured.
func NewRunner(cfg *config.Config, rt *config.Runtime, logw io.Writer) (*Runner, error) {
	pool, err := llm.Open(poolConfig(cfg, cfg.MaxInflight))
	if err != nil {
		return nil, err
	}
	if logw == nil {
		logw = io.Discard
	}
	return &Runner{
		cfg:         cfg,
		runtime:     rt,
		logw:        logw,
		pool:        pool,
		curInflight: cfg.MaxInflight,
	}, nil
}

func poolConfig(cfg *config.Config, maxInflight int) llm.Config {
	return llm.Config{
		BaseURL:         cfg.APIBase,
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		MaxInflight:     maxInflight,
		RequestTimeout:  cfg.RequestTimeout,
		MaxRetries:      cfg.MaxRetries,
		BackoffBase:     cfg.BackoffBase,
		BackoffCap:      cfg.BackoffCap,
		HonorRetryAfter: cfg.HonorRetryAfter,
		ShutdownGrace:   cfg.ShutdownGrace,
		ReasoningEffort: cfg.ReasoningEffort,
	}
}

// WithGuidance appends extra dataset conventions to every system prompt.
func (r *Runner) WithGuidance(g string) *Runner {
	r.guidance = g
	return r
}

// Pool returns the current LLM pool.
func (r *Runner) Pool() *llm.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool
}

// Close flushes usage metrics and tears down the pool.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushUsageLocked()
	r.pool.Close()
}

// Classify runs the full LLM-assisted stage: ask the model for a domain
// and structure labels, then merge them with the heuristics.
func (r *Runner) Classify(ctx context.Context, recs []*Record) (*Summary, error) {
	return r.run(ctx, "classify", recs, r.classifyOne)
}

// Label runs the heuristic-only stage. Records that already carry LLM
// labels from an earlier classify pass keep them as merge input.
func (r *Runner) Label(recs []*Record) *Summary {
	sum := newSummary("label", len(recs))
	threshold := r.threshold()
	for _, rec := range recs {
		rec.Structure = classify.Merge(rec.Fields(), rec.Structure, threshold)
		rec.EnsureID()
		sum.Succeeded++
		sum.observe(rec)
		metrics.RecordsTotal.WithLabelValues("label", "ok").Inc()
	}
	return sum
}

// run dispatches records in waves, reloading the runtime config between
// waves. Per-record failures are counted and logged; only pool teardown
// and context cancellation abort the run.
func (r *Runner) run(ctx context.Context, stage string, recs []*Record, fn func(context.Context, *Record) error) (*Summary, error) {
	sum := newSummary(stage, len(recs))
	var mu sync.Mutex

	wave := r.waveSize()
	for start := 0; start < len(recs); start += wave {
		end := min(start+wave, len(recs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.inflightLimit())
		for _, rec := range recs[start:end] {
			g.Go(func() error {
				begin := time.Now()
				err := fn(gctx, rec)
				metrics.RecordLatency.WithLabelValues(stage).Observe(time.Since(begin).Seconds())

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					sum.Failed++
					metrics.RecordsTotal.WithLabelValues(stage, "failed").Inc()
					if fatal(err) {
						return err
					}
					fmt.Fprintf(r.logw, "record %s: %v\n", rec.ID, err)
					return nil
				}
				sum.Succeeded++
				sum.observe(rec)
				metrics.RecordsTotal.WithLabelValues(stage, "ok").Inc()
				return nil
			})
		}
		err := g.Wait()
		r.afterWave(&wave)
		if err != nil {
			sum.Usage = r.usage()
			return sum, err
		}
	}
	sum.Usage = r.usage()
	return sum, nil
}

// fatal reports errors that should abort the whole run rather than fail
// one record.
func fatal(err error) bool {
	var lerr *llm.Error
	if errors.As(err, &lerr) && lerr.Kind == llm.KindPoolClosed {
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (r *Runner) classifyOne(ctx context.Context, rec *Record) error {
	f := rec.Fields()
	user := prompts.UserPrompt(f.Text, f.Code)

	domainReply, err := r.ask(ctx, prompts.ClassifySystemPrompt, user)
	if err != nil {
		return err
	}
	labelReply, err := r.ask(ctx, prompts.LabelSystemPrompt, user)
	if err != nil {
		return err
	}

	st := parseStructureReply(labelReply)
	if st == nil {
		st = &classify.Structure{}
	}
	st.Domain = parseDomainReply(domainReply)

	rec.Structure = classify.Merge(f, st, r.threshold())
	rec.EnsureID()
	return nil
}

func (r *Runner) ask(ctx context.Context, system, user string) (string, error) {
	if r.guidance != "" {
		system = system + "\n\n" + r.guidance
	}
	metrics.InflightRequests.Inc()
	defer metrics.InflightRequests.Dec()

	resp, err := r.Pool().Request(ctx, llm.Request{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: r.temperature(),
		MaxTokens:   r.maxTokens(),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// parseDomainReply extracts the domain from a classify-stage reply.
// Returns "" when the reply is unusable; the heuristics take over then.
func parseDomainReply(content string) string {
	var out struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &out); err != nil {
		return ""
	}
	return classify.NormalizeDomain(out.Domain)
}

// parseStructureReply extracts the labels from a label-stage reply.
// Returns nil when the reply is unusable.
func parseStructureReply(content string) *classify.Structure {
	var out struct {
		FromText     *classify.FromText     `json:"from_text"`
		FromSolution *classify.FromSolution `json:"from_solution"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &out); err != nil {
		return nil
	}
	if out.FromText == nil && out.FromSolution == nil {
		return nil
	}
	return &classify.Structure{FromText: out.FromText, FromSolution: out.FromSolution}
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// afterWave reloads the runtime config and applies changes. Pool-level
// settings require a fresh pool; it is swapped in while nothing is in
// flight.
func (r *Runner) afterWave(wave *int) {
	if r.runtime == nil {
		return
	}
	changes := r.runtime.Reload()
	if len(changes) == 0 {
		return
	}
	fmt.Fprintf(r.logw, "runtime config reloaded: %s\n", strings.Join(changes, ", "))

	if w := r.runtime.Int("wave_size"); w > 0 {
		*wave = w
	}
	if n := r.runtime.Int("max_inflight"); n > 0 {
		r.swapPool(n)
	}
}

func (r *Runner) swapPool(maxInflight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxInflight == r.curInflight {
		return
	}
	pool, err := llm.Open(poolConfig(r.cfg, maxInflight))
	if err != nil {
		fmt.Fprintf(r.logw, "pool reopen failed: %v\n", err)
		return
	}
	r.flushUsageLocked()
	r.usageBase = addStats(r.usageBase, r.pool.Stats())
	r.flushed = llm.Stats{}
	r.pool.Close()
	r.pool = pool
	r.curInflight = maxInflight
}

// flushUsageLocked pushes the stats delta since the last flush into the
// Prometheus counters. Caller holds r.mu.
func (r *Runner) flushUsageLocked() {
	cur := r.pool.Stats()
	metrics.AddUsage(r.pool.Model(), r.flushed, cur)
	r.flushed = cur
}

func (r *Runner) usage() llm.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushUsageLocked()
	return addStats(r.usageBase, r.pool.Stats())
}

func addStats(a, b llm.Stats) llm.Stats {
	return llm.Stats{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
		Requests:         a.Requests + b.Requests,
		Retries:          a.Retries + b.Retries,
	}
}

func (r *Runner) inflightLimit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curInflight
}

func (r *Runner) threshold() int {
	if r.runtime != nil {
		if v := r.runtime.Int("threshold"); v > 0 {
			return v
		}
	}
	return r.cfg.Threshold
}

func (r *Runner) temperature() float64 {
	if r.runtime != nil {
		if v := r.runtime.Float("temperature"); v > 0 {
			return v
		}
	}
	return r.cfg.Temperature
}

func (r *Runner) maxTokens() int {
	if r.runtime != nil {
		if v := r.runtime.Int("max_tokens"); v > 0 {
			return v
		}
	}
	return r.cfg.MaxTokens
}

func (r *Runner) waveSize() int {
	if r.runtime != nil {
		if v := r.runtime.Int("wave_size"); v > 0 {
			return v
		}
	}
	return defaultWaveSize
}
