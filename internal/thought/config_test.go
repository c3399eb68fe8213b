package thought

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.NearIdenticalThreshold != 0.95 || cfg.HighAgreementThreshold != 0.85 {
		t.Errorf("agreement thresholds = %g/%g, want 0.95/0.85",
			cfg.NearIdenticalThreshold, cfg.HighAgreementThreshold)
	}
	if cfg.HasJudge() {
		t.Error("default config should not name a judge")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	mutate := func(fn func(*OrchestraConfig)) OrchestraConfig {
		cfg := DefaultConfig()
		fn(&cfg)
		return cfg
	}
	tests := []struct {
		name    string
		cfg     OrchestraConfig
		wantErr bool
	}{
		{"default ok", DefaultConfig(), false},
		{"zero max models", mutate(func(c *OrchestraConfig) { c.MaxModels = 0 }), true},
		{"min above max", mutate(func(c *OrchestraConfig) { c.MinModels = 10 }), true},
		{"zero timeout", mutate(func(c *OrchestraConfig) { c.Timeout = 0 }), true},
		{"bad strategy", mutate(func(c *OrchestraConfig) { c.DefaultStrategy = "vibes" }), true},
		{"temperature too high", mutate(func(c *OrchestraConfig) { c.Temperature = 3 }), true},
		{"inverted thresholds", mutate(func(c *OrchestraConfig) {
			c.NearIdenticalThreshold = 0.5
			c.HighAgreementThreshold = 0.9
		}), true},
		{"negative judge retries", mutate(func(c *OrchestraConfig) { c.JudgeMaxRetries = -1 }), true},
		{"judge configured", mutate(func(c *OrchestraConfig) {
			c.JudgeBackend = "openai"
			c.JudgeModel = "gpt-4o"
			c.JudgeTimeout = 10 * time.Second
		}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHasJudge(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.JudgeBackend = "openai"
	if cfg.HasJudge() {
		t.Error("backend without model should not count as a judge")
	}
	cfg.JudgeModel = "gpt-4o"
	if !cfg.HasJudge() {
		t.Error("backend and model should count as a judge")
	}
}
