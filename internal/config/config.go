// Package config loads the process configuration from cortex.toml, layered
// over built-in defaults. The file is read once per orchestra instance;
// a reload builds a fresh Config and a fresh orchestra rather than
// mutating a live one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// DefaultFileName is the config file looked up in the working directory
// when no explicit path is given.
const DefaultFileName = "cortex.toml"

// Duration decodes TOML duration strings ("30s", "2m") into
// time.Duration.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full process configuration.
type Config struct {
	Orchestra Orchestra `toml:"orchestra"`
	Routing   Routing   `toml:"routing"`
	Server    Server    `toml:"server"`
	History   History   `toml:"history"`
}

// Orchestra mirrors thought.OrchestraConfig with TOML-friendly types.
type Orchestra struct {
	MinModels              int      `toml:"min_models"`
	MaxModels              int      `toml:"max_models"`
	Timeout                Duration `toml:"timeout"`
	DefaultStrategy        string   `toml:"default_strategy"`
	Temperature            float64  `toml:"temperature"`
	MaxTokens              int      `toml:"max_tokens"`
	JudgeBackend           string   `toml:"judge_backend"`
	JudgeModel             string   `toml:"judge_model"`
	RetryOnFailure         bool     `toml:"retry_on_failure"`
	RetryDelay             Duration `toml:"retry_delay"`
	UseModePrompts         bool     `toml:"use_mode_prompts"`
	NearIdenticalThreshold float64  `toml:"near_identical_threshold"`
	HighAgreementThreshold float64  `toml:"high_agreement_threshold"`
	JudgeMaxRetries        int      `toml:"judge_max_retries"`
	JudgeTimeout           Duration `toml:"judge_timeout"`
	JudgeBackoffBase       Duration `toml:"judge_backoff_base"`
}

// Routing optionally overrides the built-in routing table. Models are
// "backend/model" strings keyed by mode; prompts are keyed by mode.
type Routing struct {
	Models  map[string][]string `toml:"models"`
	Prompts map[string]string   `toml:"prompts"`
}

// Server configures the serve command.
type Server struct {
	Addr string `toml:"addr"`
}

// History configures the persistent record archive.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	oc := thought.DefaultConfig()
	return Config{
		Orchestra: Orchestra{
			MinModels:              oc.MinModels,
			MaxModels:              oc.MaxModels,
			Timeout:                Duration(oc.Timeout),
			DefaultStrategy:        oc.DefaultStrategy.String(),
			Temperature:            oc.Temperature,
			MaxTokens:              oc.MaxTokens,
			RetryOnFailure:         oc.RetryOnFailure,
			RetryDelay:             Duration(oc.RetryDelay),
			UseModePrompts:         oc.UseModePrompts,
			NearIdenticalThreshold: oc.NearIdenticalThreshold,
			HighAgreementThreshold: oc.HighAgreementThreshold,
			JudgeMaxRetries:        oc.JudgeMaxRetries,
			JudgeTimeout:           Duration(oc.JudgeTimeout),
			JudgeBackoffBase:       Duration(oc.JudgeBackoffBase),
		},
		Server: Server{
			Addr: "127.0.0.1:8525",
		},
		History: History{
			Enabled: true,
			Path:    defaultArchivePath(),
		},
	}
}

func defaultArchivePath() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "cortex-history.db"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "cortex", "history.db")
}

// Load reads path over the defaults. A missing file at the default
// location is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := c.OrchestraConfig(); err != nil {
		return err
	}
	if _, err := c.RoutingTable(); err != nil {
		return err
	}
	return nil
}

// OrchestraConfig converts the file representation into the engine's
// configuration, validating it.
func (c Config) OrchestraConfig() (thought.OrchestraConfig, error) {
	strategy, ok := thought.ParseStrategy(c.Orchestra.DefaultStrategy)
	if !ok {
		return thought.OrchestraConfig{}, fmt.Errorf("unknown default_strategy %q", c.Orchestra.DefaultStrategy)
	}
	oc := thought.OrchestraConfig{
		MinModels:              c.Orchestra.MinModels,
		MaxModels:              c.Orchestra.MaxModels,
		Timeout:                c.Orchestra.Timeout.Std(),
		DefaultStrategy:        strategy,
		Temperature:            c.Orchestra.Temperature,
		MaxTokens:              c.Orchestra.MaxTokens,
		JudgeBackend:           c.Orchestra.JudgeBackend,
		JudgeModel:             c.Orchestra.JudgeModel,
		RetryOnFailure:         c.Orchestra.RetryOnFailure,
		RetryDelay:             c.Orchestra.RetryDelay.Std(),
		UseModePrompts:         c.Orchestra.UseModePrompts,
		NearIdenticalThreshold: c.Orchestra.NearIdenticalThreshold,
		HighAgreementThreshold: c.Orchestra.HighAgreementThreshold,
		JudgeMaxRetries:        c.Orchestra.JudgeMaxRetries,
		JudgeTimeout:           c.Orchestra.JudgeTimeout.Std(),
		JudgeBackoffBase:       c.Orchestra.JudgeBackoffBase.Std(),
	}
	if err := oc.Validate(); err != nil {
		return thought.OrchestraConfig{}, err
	}
	return oc, nil
}

// RoutingTable returns the built-in table with any file overrides applied.
// A mode present in the file replaces that mode's entry wholesale.
func (c Config) RoutingTable() (thought.RoutingTable, error) {
	table := thought.DefaultRoutingTable()
	for modeStr, entries := range c.Routing.Models {
		mode, ok := thought.ParseMode(modeStr)
		if !ok {
			return table, fmt.Errorf("unknown routing mode %q", modeStr)
		}
		refs := make([]thought.ModelRef, 0, len(entries))
		for _, entry := range entries {
			backend, model, found := strings.Cut(entry, "/")
			if !found || backend == "" || model == "" {
				return table, fmt.Errorf("routing entry %q: want backend/model", entry)
			}
			refs = append(refs, thought.ModelRef{Backend: backend, Model: model})
		}
		table.Models[mode] = refs
	}
	for modeStr, prompt := range c.Routing.Prompts {
		mode, ok := thought.ParseMode(modeStr)
		if !ok {
			return table, fmt.Errorf("unknown prompt mode %q", modeStr)
		}
		table.Prompts[mode] = prompt
	}
	return table, nil
}
