package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics over the archive",
		Long: `Aggregate the archived thinking records: total calls, average
confidence, agreement, latency, model success rate, and call counts
broken down by mode and strategy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := openArchive()
			if err != nil {
				return outputError(w, err)
			}
			defer store.Close()

			stats, err := store.Stats()
			if err != nil {
				return outputError(w, err)
			}
			resp := output.StatsResponse{
				TimestampedResponse: output.NewTimestamped(),
				Stats:               stats,
			}
			if done, err := emit(w, resp); done {
				return err
			}
			output.RenderStats(w, resp)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the orchestra configuration and available models",
		Long: `Show which backends hold credentials, the models each thinking mode
would query right now, the judge, and the default fusion strategy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			cfg, err := loadConfig()
			if err != nil {
				return outputError(w, err)
			}
			orch, store, err := buildOrchestra(cfg)
			if err != nil {
				return outputError(w, err)
			}
			defer func() {
				if store != nil {
					store.Close()
				}
				orch.Close(cmd.Context())
			}()

			resp := output.StatusResponse{
				TimestampedResponse: output.NewTimestamped(),
				Status:              orch.Status(),
			}
			if done, err := emit(w, resp); done {
				return err
			}
			output.RenderStatus(w, resp)
			if store != nil {
				if n, err := store.Count(); err == nil {
					fmt.Fprintf(w, "archive: %d records at %s\n", n, store.Path())
				}
			}
			return nil
		},
	}
}
