package thought

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/provider"
)

// Orchestra is the engine's entry point: it resolves candidate models for
// a mode, fans the prompt out concurrently, fuses the answers, and records
// one ThinkingRecord per call. Safe for concurrent Think calls.
type Orchestra struct {
	cfg     OrchestraConfig
	table   RoutingTable
	pool    *provider.Pool
	fuser   *Fuser
	log     *slog.Logger
	sink    RecordSink
	started time.Time

	mu      sync.Mutex
	history []ThinkingRecord
}

// Option adjusts an Orchestra at construction time.
type Option func(*Orchestra)

// WithRecordSink mirrors every ThinkingRecord to sink in addition to the
// in-memory history. Sink errors are logged, never propagated.
func WithRecordSink(sink RecordSink) Option {
	return func(o *Orchestra) { o.sink = sink }
}

// WithLogger sets the orchestra's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestra) { o.log = log }
}

// WithRoutingTable replaces the default routing table.
func WithRoutingTable(table RoutingTable) Option {
	return func(o *Orchestra) { o.table = table }
}

// New builds an Orchestra over the given pool. Configuration is validated
// once here and immutable afterwards.
func New(cfg OrchestraConfig, pool *provider.Pool, opts ...Option) (*Orchestra, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestra config: %w", err)
	}
	if pool == nil {
		return nil, errors.New("orchestra requires a provider pool")
	}
	o := &Orchestra{
		cfg:     cfg,
		table:   DefaultRoutingTable(),
		pool:    pool,
		log:     slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	var judge Completer
	if cfg.HasJudge() {
		judge = pool.Get(cfg.JudgeBackend, cfg.JudgeModel)
	}
	o.fuser = NewFuser(cfg, judge, o.log)
	return o, nil
}

// Config returns the orchestra's configuration.
func (o *Orchestra) Config() OrchestraConfig { return o.cfg }

// Table returns the orchestra's routing table.
func (o *Orchestra) Table() RoutingTable { return o.table }

// Think answers the prompt with the given mode: it fans out to every
// eligible backend, waits for all legs to finish, and fuses the results.
// It is total: every failure path returns a FusedThought, never an error.
func (o *Orchestra) Think(ctx context.Context, prompt string, mode ThinkingMode, systemOverride *string, strategyOverride *FusionStrategy) FusedThought {
	start := time.Now()

	refs := o.table.ResolveModels(mode, o.cfg.MaxModels)
	strategy := o.cfg.DefaultStrategy
	if strategyOverride != nil {
		strategy = *strategyOverride
	}

	if len(refs) == 0 {
		o.log.Warn("no models available", "mode", mode)
		fused := FusedThought{
			Content:    "no models available",
			Strategy:   strategy,
			Confidence: 0,
			Sources:    []ModelResponse{},
			Meta:       map[string]any{"mode": mode.String()},
		}
		o.record(mode, fused, 0, time.Since(start))
		return fused
	}

	system := o.table.ResolveSystemPrompt(mode, systemOverride, o.cfg.UseModePrompts)

	o.log.Info("fanning out",
		"mode", mode,
		"models", len(refs),
		"strategy", strategy)

	// Index correspondence with refs is deliberate: majority tie-breaking
	// depends on routing order, not completion order.
	responses := make([]ModelResponse, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref ModelRef) {
			defer wg.Done()
			responses[i] = o.queryModel(ctx, ref, prompt, system)
		}(i, ref)
	}
	wg.Wait()

	fused := o.fuser.Fuse(ctx, responses, prompt, strategy)

	succeeded := 0
	for _, r := range responses {
		if r.OK() {
			succeeded++
		}
	}
	elapsed := time.Since(start)
	if fused.Meta == nil {
		fused.Meta = map[string]any{}
	}
	fused.Meta["mode"] = mode.String()
	fused.Meta["total_latency_ms"] = float64(elapsed) / float64(time.Millisecond)
	fused.Meta["models_queried"] = len(refs)
	fused.Meta["models_succeeded"] = succeeded
	fused.Meta["pool_size"] = o.pool.Size()

	o.record(mode, fused, len(refs), elapsed)

	o.log.Info("thought fused",
		"mode", mode,
		"strategy", fused.Strategy,
		"confidence", fused.Confidence,
		"agreement", fused.AgreementScore,
		"succeeded", succeeded,
		"queried", len(refs),
		"latency", elapsed)
	return fused
}

// queryModel runs one fan-out leg: up to two attempts when retry is
// enabled, each bounded by the configured timeout. The returned response
// carries the last error on total failure; it never panics.
func (o *Orchestra) queryModel(ctx context.Context, ref ModelRef, prompt, system string) ModelResponse {
	attempts := 1
	if o.cfg.RetryOnFailure {
		attempts = 2
	}
	prov := o.pool.Get(ref.Backend, ref.Model)

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		content, err := prov.Complete(attemptCtx, prompt, system, o.cfg.Temperature, o.cfg.MaxTokens)
		cancel()
		if err == nil && content == "" {
			err = errors.New("empty response")
		}
		if err == nil {
			return ModelResponse{
				Backend:    ref.Backend,
				Model:      ref.Model,
				Content:    content,
				LatencyMs:  float64(time.Since(start)) / float64(time.Millisecond),
				TokenCount: estimateTokens(content),
			}
		}
		lastErr = err
		o.log.Debug("model attempt failed",
			"model", ref.String(),
			"attempt", attempt+1,
			"error", err)
		if attempt < attempts-1 {
			if !sleepCtx(ctx, o.cfg.RetryDelay) {
				break
			}
		}
	}
	return ModelResponse{
		Backend:   ref.Backend,
		Model:     ref.Model,
		LatencyMs: float64(time.Since(start)) / float64(time.Millisecond),
		Err:       lastErr,
	}
}

// record appends one history entry and mirrors it to the sink.
func (o *Orchestra) record(mode ThinkingMode, fused FusedThought, queried int, elapsed time.Duration) {
	succeeded := 0
	for _, r := range fused.Sources {
		if r.OK() {
			succeeded++
		}
	}
	var winner *string
	if w := fused.Winner(); w != "" {
		winner = &w
	}
	rec := ThinkingRecord{
		Mode:            mode.String(),
		Strategy:        fused.Strategy.String(),
		ModelsQueried:   queried,
		ModelsSucceeded: succeeded,
		TotalLatencyMs:  float64(elapsed) / float64(time.Millisecond),
		Confidence:      fused.Confidence,
		Agreement:       fused.AgreementScore,
		Winner:          winner,
		Timestamp:       time.Now().UTC(),
	}

	o.mu.Lock()
	o.history = append(o.history, rec)
	o.mu.Unlock()

	if o.sink != nil {
		if err := o.sink.Append(rec); err != nil {
			o.log.Error("record sink append failed", "error", err)
		}
	}
}

// Records returns a copy of the most recent n history entries, newest
// last. n <= 0 returns everything.
func (o *Orchestra) Records(n int) []ThinkingRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	start := 0
	if n > 0 && len(o.history) > n {
		start = len(o.history) - n
	}
	out := make([]ThinkingRecord, len(o.history)-start)
	copy(out, o.history[start:])
	return out
}

// Stats is an aggregate view over the orchestra's history.
type Stats struct {
	TotalCalls    int            `json:"total_calls" yaml:"total_calls"`
	AvgConfidence float64        `json:"avg_confidence" yaml:"avg_confidence"`
	AvgAgreement  float64        `json:"avg_agreement" yaml:"avg_agreement"`
	AvgLatencyMs  float64        `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	SuccessRate   float64        `json:"success_rate" yaml:"success_rate"`
	ByMode        map[string]int `json:"by_mode" yaml:"by_mode"`
	ByStrategy    map[string]int `json:"by_strategy" yaml:"by_strategy"`
}

// Stats aggregates every record so far.
func (o *Orchestra) Stats() Stats {
	o.mu.Lock()
	recs := make([]ThinkingRecord, len(o.history))
	copy(recs, o.history)
	o.mu.Unlock()

	s := Stats{
		ByMode:     make(map[string]int),
		ByStrategy: make(map[string]int),
	}
	if len(recs) == 0 {
		return s
	}
	var confSum, agrSum, latSum float64
	var queried, succeeded int
	for _, r := range recs {
		confSum += r.Confidence
		agrSum += r.Agreement
		latSum += r.TotalLatencyMs
		queried += r.ModelsQueried
		succeeded += r.ModelsSucceeded
		s.ByMode[r.Mode]++
		s.ByStrategy[r.Strategy]++
	}
	n := float64(len(recs))
	s.TotalCalls = len(recs)
	s.AvgConfidence = confSum / n
	s.AvgAgreement = agrSum / n
	s.AvgLatencyMs = latSum / n
	if queried > 0 {
		s.SuccessRate = float64(succeeded) / float64(queried)
	}
	return s
}

// Status is a point-in-time snapshot of the orchestra's wiring.
type Status struct {
	UptimeSeconds   float64          `json:"uptime_seconds" yaml:"uptime_seconds"`
	PoolSize        int              `json:"pool_size" yaml:"pool_size"`
	JudgeConfigured bool             `json:"judge_configured" yaml:"judge_configured"`
	Judge           string           `json:"judge,omitempty" yaml:"judge,omitempty"`
	DefaultStrategy string           `json:"default_strategy" yaml:"default_strategy"`
	HistoryLength   int              `json:"history_length" yaml:"history_length"`
	ModesAvailable  map[string][]string `json:"modes_available" yaml:"modes_available"`
}

// Status reports which backends each mode can currently reach, along with
// pool and history sizes.
func (o *Orchestra) Status() Status {
	o.mu.Lock()
	histLen := len(o.history)
	o.mu.Unlock()

	modes := make(map[string][]string, len(AllModes()))
	for _, m := range AllModes() {
		refs := o.table.ResolveModels(m, o.cfg.MaxModels)
		ids := make([]string, len(refs))
		for i, ref := range refs {
			ids[i] = ref.String()
		}
		modes[m.String()] = ids
	}

	st := Status{
		UptimeSeconds:   time.Since(o.started).Seconds(),
		PoolSize:        o.pool.Size(),
		JudgeConfigured: o.cfg.HasJudge(),
		DefaultStrategy: o.cfg.DefaultStrategy.String(),
		HistoryLength:   histLen,
		ModesAvailable:  modes,
	}
	if o.cfg.HasJudge() {
		st.Judge = o.cfg.JudgeBackend + "/" + o.cfg.JudgeModel
	}
	return st
}

// Close shuts down the provider pool.
func (o *Orchestra) Close(ctx context.Context) error {
	return o.pool.CloseAll(ctx)
}
