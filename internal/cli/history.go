package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/config"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/history"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
)

// openArchive opens the history store configured in cfg, failing when
// history is disabled.
func openArchive() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled in the config (set [history] enabled = true)")
	}
	return history.Open(cfg.History.Path)
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent thinking records",
		Long: `List recent thinking records from the archive: mode, strategy, model
counts, confidence, and winner per call. Records persist across runs in
a SQLite database (see [history] in ` + config.DefaultFileName + `).`,
		Example: `  cortex history
  cortex history --limit=5
  cortex history export backup.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := openArchive()
			if err != nil {
				return outputError(w, err)
			}
			defer store.Close()

			if limit < 0 {
				return outputError(w, errors.New("limit must be non-negative"))
			}
			recs, err := store.Recent(limit)
			if err != nil {
				return outputError(w, err)
			}
			resp := output.HistoryResponse{
				TimestampedResponse: output.NewTimestamped(),
				Records:             recs,
				Count:               len(recs),
			}
			if done, err := emit(w, resp); done {
				return err
			}
			output.RenderHistory(w, resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show (0 for all)")
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryImportCmd())
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the archive to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := openArchive()
			if err != nil {
				return outputError(w, err)
			}
			defer store.Close()

			if err := store.ExportFile(args[0]); err != nil {
				return outputError(w, err)
			}
			count, _ := store.Count()
			fmt.Fprintf(w, "exported %d records to %s\n", count, args[0])
			return nil
		},
	}
}

func newHistoryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from a JSONL file into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			store, err := openArchive()
			if err != nil {
				return outputError(w, err)
			}
			defer store.Close()

			imported, err := store.ImportFile(args[0])
			if err != nil {
				return outputError(w, fmt.Errorf("imported %d records before failing: %w", imported, err))
			}
			fmt.Fprintf(w, "imported %d records from %s\n", imported, args[0])
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record in the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if !yes {
				return outputError(w, errors.New("refusing to clear without --yes"))
			}
			store, err := openArchive()
			if err != nil {
				return outputError(w, err)
			}
			defer store.Close()

			removed, err := store.Clear()
			if err != nil {
				return outputError(w, err)
			}
			fmt.Fprintf(w, "removed %d records\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
