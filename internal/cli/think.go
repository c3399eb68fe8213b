package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

func newThinkCmd() *cobra.Command {
	var (
		modeFlag     string
		strategyFlag string
		systemFlag   string
		explain      bool
	)

	cmd := &cobra.Command{
		Use:   "think <prompt>",
		Short: "Ask several models and fuse their answers",
		Long: `Send a prompt to every configured model for its thinking mode and
fuse the responses into one answer.

Without --mode the prompt is classified automatically; the chosen mode
and its signals are shown alongside the answer. --explain adds a diff
of the two least-similar model responses.`,
		Example: `  cortex think "Why does this deadlock under load?"
  cortex think --mode=code "Refactor the retry loop in fetch.go"
  cortex think --strategy=weighted_synthesis --explain "Compare Raft and Paxos"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			w := cmd.OutOrStdout()

			var route *output.RouteResponse
			var mode thought.ThinkingMode
			if modeFlag == "" {
				decision := thought.Classify(prompt)
				mode = decision.Mode
				rr := output.NewRouteResponse(decision)
				route = &rr
			} else {
				parsed, ok := thought.ParseMode(modeFlag)
				if !ok {
					return outputError(w, fmt.Errorf("unknown mode %q (expected one of %s)", modeFlag, modeList()))
				}
				mode = parsed
			}

			var strategyOverride *thought.FusionStrategy
			if strategyFlag != "" {
				strategy, ok := thought.ParseStrategy(strategyFlag)
				if !ok {
					return outputError(w, fmt.Errorf("unknown strategy %q", strategyFlag))
				}
				strategyOverride = &strategy
			}
			var systemOverride *string
			if systemFlag != "" {
				systemOverride = &systemFlag
			}

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

			ctx, cancel := signalContext()
			defer cancel()

			fused := orch.Think(ctx, prompt, mode, systemOverride, strategyOverride)
			resp := output.NewThinkResponse(mode, fused)
			resp.Route = route

			if done, err := emit(w, resp); done {
				return err
			}
			output.RenderThink(w, resp)
			if explain {
				fmt.Fprintln(w)
				output.RenderDivergence(w, fused.Sources)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Thinking mode: "+modeList()+" (default: auto-route)")
	cmd.Flags().StringVarP(&strategyFlag, "strategy", "s", "", "Fusion strategy: majority, synthesis, best_of_n, weighted_synthesis")
	cmd.Flags().StringVar(&systemFlag, "system", "", "Override the system prompt sent to every model")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show a diff of the two least-similar responses")
	return cmd
}

func modeList() string {
	modes := thought.AllModes()
	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}
