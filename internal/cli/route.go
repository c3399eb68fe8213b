package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <prompt>",
		Short: "Show how a prompt would be routed, without querying models",
		Long: `Classify a prompt into a thinking mode and print the signal scores
behind the decision. Nothing is sent to any backend.`,
		Example: `  cortex route "Fix the bug in auth.py where tokens expire"
  cortex route --json "Write a poem about entropy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			decision := thought.Classify(strings.Join(args, " "))
			resp := output.NewRouteResponse(decision)
			if done, err := emit(w, resp); done {
				return err
			}
			output.RenderRoute(w, resp)
			return nil
		},
	}
}
