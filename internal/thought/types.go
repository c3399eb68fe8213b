// Package thought implements the thought orchestration and fusion engine:
// it resolves which model backends serve a thinking mode, fans a prompt out
// to them concurrently, and merges the independent answers into a single
// response with a calibrated confidence score.
package thought

import (
	"strings"
	"time"
)

// ThinkingMode is a named intent class that selects which backends and
// system prompt a query uses.
type ThinkingMode string

const (
	// ModeCode targets code-capable backends for programming prompts.
	ModeCode ThinkingMode = "code"

	// ModeCreative targets backends tuned for open-ended writing.
	ModeCreative ThinkingMode = "creative"

	// ModeDeepReasoning targets the strongest backends for multi-step analysis.
	ModeDeepReasoning ThinkingMode = "deep_reasoning"

	// ModeSpeed targets fast, cheap backends for direct questions.
	ModeSpeed ThinkingMode = "speed"
)

// AllModes returns every thinking mode in display order.
func AllModes() []ThinkingMode {
	return []ThinkingMode{ModeCode, ModeCreative, ModeDeepReasoning, ModeSpeed}
}

// IsValid reports whether the mode is one of the known modes.
func (m ThinkingMode) IsValid() bool {
	switch m {
	case ModeCode, ModeCreative, ModeDeepReasoning, ModeSpeed:
		return true
	}
	return false
}

// String returns the mode identifier.
func (m ThinkingMode) String() string { return string(m) }

// ParseMode normalizes a user-supplied mode string. Returns false when the
// string names no known mode.
func ParseMode(s string) (ThinkingMode, bool) {
	m := ThinkingMode(strings.ToLower(strings.TrimSpace(s)))
	// Accept the hyphenated spelling used in docs and flags.
	if m == "deep-reasoning" {
		m = ModeDeepReasoning
	}
	if m.IsValid() {
		return m, true
	}
	return "", false
}

// FusionStrategy is the algorithm used to merge multiple model answers
// into one.
type FusionStrategy string

const (
	// StrategyMajority picks the answer closest to the group consensus.
	StrategyMajority FusionStrategy = "majority"

	// StrategySynthesis asks the judge to write one answer combining the
	// strongest parts of all responses.
	StrategySynthesis FusionStrategy = "synthesis"

	// StrategyBestOfN scores every response with the judge and returns the
	// highest-scoring one verbatim.
	StrategyBestOfN FusionStrategy = "best_of_n"

	// StrategyWeighted scores every response, then synthesizes with the
	// judge weighting toward the higher-scored responses.
	StrategyWeighted FusionStrategy = "weighted_synthesis"
)

// IsValid reports whether the strategy is one of the known strategies.
func (s FusionStrategy) IsValid() bool {
	switch s {
	case StrategyMajority, StrategySynthesis, StrategyBestOfN, StrategyWeighted:
		return true
	}
	return false
}

// String returns the strategy identifier.
func (s FusionStrategy) String() string { return string(s) }

// ParseStrategy normalizes a user-supplied strategy string. Returns false
// when the string names no known strategy.
func ParseStrategy(s string) (FusionStrategy, bool) {
	f := FusionStrategy(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "best-of-n", "bestofn":
		f = StrategyBestOfN
	case "weighted", "weighted-synthesis":
		f = StrategyWeighted
	}
	if f.IsValid() {
		return f, true
	}
	return "", false
}

// ModelResponse is one backend's answer to one query. It is created once
// per fan-out leg and never mutated afterwards.
type ModelResponse struct {
	// Backend is the provider name (e.g. "openai", "anthropic").
	Backend string `json:"backend" yaml:"backend"`

	// Model is the model identifier within the backend.
	Model string `json:"model" yaml:"model"`

	// Content is the raw answer text. Empty when the leg failed.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// LatencyMs is the wall-clock duration of the leg across all attempts.
	LatencyMs float64 `json:"latency_ms" yaml:"latency_ms"`

	// TokenCount is a whitespace word-count estimate of the answer length.
	// Diagnostic only; never load-bearing for scoring.
	TokenCount int `json:"token_count,omitempty" yaml:"token_count,omitempty"`

	// Err is the last error observed for this leg, nil on success.
	// Excluded from serialization; use ErrorString for wire formats.
	Err error `json:"-" yaml:"-"`
}

// OK reports whether this response is usable fusion input.
func (r ModelResponse) OK() bool {
	return r.Err == nil && r.Content != ""
}

// ID returns the backend/model pair as a single identifier.
func (r ModelResponse) ID() string {
	return r.Backend + "/" + r.Model
}

// ErrorString returns the leg error as text, empty on success.
func (r ModelResponse) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// estimateTokens approximates token usage by whitespace word splitting.
func estimateTokens(content string) int {
	return len(strings.Fields(content))
}

// FusedThought is the orchestra's merged answer.
type FusedThought struct {
	// Content is the final answer text.
	Content string `json:"content" yaml:"content"`

	// Strategy is the fusion strategy that actually produced the answer,
	// which may differ from the requested one (e.g. the near-identical
	// short-circuit always records majority).
	Strategy FusionStrategy `json:"strategy" yaml:"strategy"`

	// Confidence is the calibrated confidence in [0,1]. Zero if and only
	// if no leg succeeded.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Sources holds every queried leg, failures included, for audit. Its
	// length always equals the number of models queried, in routing order.
	Sources []ModelResponse `json:"sources" yaml:"sources"`

	// AgreementScore is the mean pairwise Jaccard similarity of the
	// successful responses, in [0,1].
	AgreementScore float64 `json:"agreement_score" yaml:"agreement_score"`

	// Meta carries free-form diagnostics: winner id, per-model scores,
	// judge identity, total latency.
	Meta map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Winner returns the id of the winning source, if the strategy recorded one.
func (f FusedThought) Winner() string {
	if f.Meta == nil {
		return ""
	}
	if w, ok := f.Meta["winner"].(string); ok {
		return w
	}
	return ""
}

// ThinkingRecord is one append-only history entry per Think call.
type ThinkingRecord struct {
	// Mode is the thinking mode that was queried.
	Mode string `json:"mode" yaml:"mode"`

	// Strategy is the fusion strategy recorded on the result.
	Strategy string `json:"strategy" yaml:"strategy"`

	// ModelsQueried is the number of fan-out legs launched.
	ModelsQueried int `json:"models_queried" yaml:"models_queried"`

	// ModelsSucceeded is the number of legs that returned usable content.
	ModelsSucceeded int `json:"models_succeeded" yaml:"models_succeeded"`

	// TotalLatencyMs is the wall-clock duration of the whole Think call.
	TotalLatencyMs float64 `json:"total_latency_ms" yaml:"total_latency_ms"`

	// Confidence is the fused confidence score.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Agreement is the fused agreement score.
	Agreement float64 `json:"agreement" yaml:"agreement"`

	// Winner is the winning backend/model id, nil when the strategy
	// synthesized rather than selected.
	Winner *string `json:"winner,omitempty" yaml:"winner,omitempty"`

	// Timestamp is when the record was appended.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RecordSink receives each ThinkingRecord as it is appended. Implementations
// must be safe for concurrent use; errors are logged, never propagated.
type RecordSink interface {
	Append(rec ThinkingRecord) error
}

// RouteDecision is the semantic router's classification of a raw prompt.
type RouteDecision struct {
	// Mode is the selected thinking mode.
	Mode ThinkingMode `json:"mode" yaml:"mode"`

	// Confidence is how certain the classifier is, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Signals holds the per-dimension scores (code, creative, reasoning,
	// speed) that drove the decision.
	Signals map[string]float64 `json:"signals" yaml:"signals"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason" yaml:"reason"`
}

// ModelRef identifies one (backend, model) candidate in the routing table.
type ModelRef struct {
	// Backend is the provider name.
	Backend string `json:"backend" yaml:"backend"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model"`
}

// String returns the backend/model pair as a single identifier.
func (m ModelRef) String() string { return m.Backend + "/" + m.Model }
