package thought

import (
	"fmt"
	"time"
)

// OrchestraConfig is the immutable per-orchestra configuration. Build one
// with DefaultConfig and adjust fields before constructing the Orchestra;
// it is never mutated afterwards.
type OrchestraConfig struct {
	// MinModels is the minimum number of backends worth fanning out to.
	MinModels int `json:"min_models" toml:"min_models"`

	// MaxModels caps the fan-out width per Think call.
	MaxModels int `json:"max_models" toml:"max_models"`

	// Timeout bounds each attempt of each per-model leg.
	Timeout time.Duration `json:"timeout" toml:"timeout"`

	// DefaultStrategy is used when Think receives no strategy override.
	DefaultStrategy FusionStrategy `json:"default_strategy" toml:"default_strategy"`

	// Temperature is passed through to every provider call.
	Temperature float64 `json:"temperature" toml:"temperature"`

	// MaxTokens is passed through to every provider call.
	MaxTokens int `json:"max_tokens" toml:"max_tokens"`

	// JudgeBackend and JudgeModel identify the judge. Both empty means no
	// judge is configured and every strategy degrades to majority.
	JudgeBackend string `json:"judge_backend" toml:"judge_backend"`
	JudgeModel   string `json:"judge_model" toml:"judge_model"`

	// RetryOnFailure grants each leg a second attempt after an error.
	RetryOnFailure bool `json:"retry_on_failure" toml:"retry_on_failure"`

	// RetryDelay is the sleep between leg attempts.
	RetryDelay time.Duration `json:"retry_delay" toml:"retry_delay"`

	// UseModePrompts enables the per-mode canned system prompts.
	UseModePrompts bool `json:"use_mode_prompts" toml:"use_mode_prompts"`

	// NearIdenticalThreshold is the agreement level above which fusion
	// skips the judge entirely and returns the fastest answer.
	NearIdenticalThreshold float64 `json:"near_identical_threshold" toml:"near_identical_threshold"`

	// HighAgreementThreshold is the agreement level above which fusion
	// prefers majority selection over judge strategies.
	HighAgreementThreshold float64 `json:"high_agreement_threshold" toml:"high_agreement_threshold"`

	// JudgeMaxRetries is the retry budget of the judge circuit breaker;
	// the judge is attempted at most JudgeMaxRetries+1 times.
	JudgeMaxRetries int `json:"judge_max_retries" toml:"judge_max_retries"`

	// JudgeTimeout bounds each judge attempt.
	JudgeTimeout time.Duration `json:"judge_timeout" toml:"judge_timeout"`

	// JudgeBackoffBase is the base of the exponential backoff between
	// judge attempts (base * 2^attempt).
	JudgeBackoffBase time.Duration `json:"judge_backoff_base" toml:"judge_backoff_base"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() OrchestraConfig {
	return OrchestraConfig{
		MinModels:              2,
		MaxModels:              4,
		Timeout:                60 * time.Second,
		DefaultStrategy:        StrategySynthesis,
		Temperature:            0.7,
		MaxTokens:              4096,
		RetryOnFailure:         true,
		RetryDelay:             2 * time.Second,
		UseModePrompts:         true,
		NearIdenticalThreshold: 0.95,
		HighAgreementThreshold: 0.85,
		JudgeMaxRetries:        2,
		JudgeTimeout:           30 * time.Second,
		JudgeBackoffBase:       500 * time.Millisecond,
	}
}

// HasJudge reports whether a judge backend is configured.
func (c OrchestraConfig) HasJudge() bool {
	return c.JudgeBackend != "" && c.JudgeModel != ""
}

// Validate checks the configuration for values that would make the
// orchestra misbehave rather than merely perform badly.
func (c OrchestraConfig) Validate() error {
	if c.MaxModels < 1 {
		return fmt.Errorf("max_models must be at least 1, got %d", c.MaxModels)
	}
	if c.MinModels > c.MaxModels {
		return fmt.Errorf("min_models %d exceeds max_models %d", c.MinModels, c.MaxModels)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if !c.DefaultStrategy.IsValid() {
		return fmt.Errorf("unknown default strategy %q", c.DefaultStrategy)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %g", c.Temperature)
	}
	if c.NearIdenticalThreshold < c.HighAgreementThreshold {
		return fmt.Errorf("near_identical_threshold %g below high_agreement_threshold %g",
			c.NearIdenticalThreshold, c.HighAgreementThreshold)
	}
	if c.JudgeMaxRetries < 0 {
		return fmt.Errorf("judge_max_retries must be non-negative, got %d", c.JudgeMaxRetries)
	}
	return nil
}
