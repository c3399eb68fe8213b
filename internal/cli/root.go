// Package cli implements the cortex command tree. Every command loads the
// TOML config, builds an orchestra from it, and renders results as styled
// text, JSON, or YAML depending on flags and the output terminal.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/config"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/history"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/provider"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

var (
	jsonOutput bool
	yamlOutput bool
	configPath string
	verbose    bool
)

// IsJSONOutput reports whether --json was passed.
func IsJSONOutput() bool { return jsonOutput }

// IsYAMLOutput reports whether --yaml was passed.
func IsYAMLOutput() bool { return yamlOutput }

// Execute runs the root command. It returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cortex",
		Short: "Multi-model thought orchestration",
		Long: `cortex fans a prompt out to several model backends in parallel and
fuses their answers into a single response with a confidence score.

Prompts are classified into a thinking mode (code, creative,
deep_reasoning, speed) that decides which models answer. Configure
backends and routing in ` + config.DefaultFileName + `.`,
		Example: `  cortex think "Fix the race in the session store"
  cortex think --mode=creative --strategy=best_of_n "Name this project"
  cortex route "What is a monad?"
  cortex serve --addr=127.0.0.1:8525`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	pf.BoolVar(&yamlOutput, "yaml", false, "Emit YAML output")
	pf.StringVar(&configPath, "config", "", "Config file path (default "+config.DefaultFileName+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newThinkCmd())
	cmd.AddCommand(newRouteCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// setupLogging routes slog to stderr so stdout stays parseable.
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the configured (or default) config file.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// buildOrchestra assembles an orchestra from the config, opening the
// history archive when enabled. The caller owns both returned closers;
// store is nil when history is disabled.
func buildOrchestra(cfg config.Config) (*thought.Orchestra, *history.Store, error) {
	orchCfg, err := cfg.OrchestraConfig()
	if err != nil {
		return nil, nil, err
	}
	table, err := cfg.RoutingTable()
	if err != nil {
		return nil, nil, err
	}

	opts := []thought.Option{
		thought.WithLogger(slog.Default()),
		thought.WithRoutingTable(table),
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		opts = append(opts, thought.WithRecordSink(store))
	}

	orch, err := thought.New(orchCfg, provider.NewPool(nil), opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return orch, store, nil
}
