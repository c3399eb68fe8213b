package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/config"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/history"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/provider"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/serve"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

func newServeCmd() *cobra.Command {
	var addr string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the orchestra over HTTP: POST /api/v1/think plus stats, status,
history, and a websocket event stream at /api/v1/events.

The config file is watched; edits swap in a rebuilt orchestra without
dropping in-flight requests.`,
		Example: `  cortex serve
  cortex serve --addr=0.0.0.0:8525 --no-watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			var store *history.Store
			if cfg.History.Enabled {
				store, err = history.Open(cfg.History.Path)
				if err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
			}

			srv := serve.New(nil, slog.Default())
			defer srv.Close()

			build := func() (serve.Thinker, error) {
				return buildServeOrchestra(srv, store)
			}
			orch, err := build()
			if err != nil {
				return err
			}
			srv.Swap(orch)

			if !noWatch {
				path := configPath
				if path == "" {
					path = config.DefaultFileName
				}
				if err := srv.WatchConfig(path, build); err != nil {
					slog.Warn("config watching unavailable", "path", path, "error", err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable config file watching")
	return cmd
}

// buildServeOrchestra rebuilds the orchestra from the current config file,
// wiring records through the server's websocket hub and into the archive.
func buildServeOrchestra(srv *serve.Server, store *history.Store) (*thought.Orchestra, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	orchCfg, err := cfg.OrchestraConfig()
	if err != nil {
		return nil, err
	}
	table, err := cfg.RoutingTable()
	if err != nil {
		return nil, err
	}

	sink := serve.BroadcastSink{Hub: srv.Hub()}
	if store != nil {
		sink.Next = store
	}
	return thought.New(orchCfg, provider.NewPool(nil),
		thought.WithLogger(slog.Default()),
		thought.WithRoutingTable(table),
		thought.WithRecordSink(sink),
	)
}
