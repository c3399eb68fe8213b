package output

import (
	"fmt"
	"io"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// RenderDivergence shows where the two least-similar successful responses
// disagree. Insertions come from the second response, deletions from the
// first. No-op when fewer than two responses succeeded.
func RenderDivergence(w io.Writer, responses []thought.ModelResponse) {
	i, j, sim, ok := thought.LeastSimilarPair(responses)
	if !ok {
		fmt.Fprintln(w, "divergence view needs at least two successful responses")
		return
	}
	a, b := responses[i], responses[j]
	styled := IsInteractive(w)

	header := fmt.Sprintf("largest divergence: %s vs %s (similarity %.2f)", a.ID(), b.ID(), sim)
	if styled {
		header = titleStyle.Render(header)
	}
	fmt.Fprintln(w, header)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a.Content, b.Content, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	if styled {
		fmt.Fprintln(w, dmp.DiffPrettyText(diffs))
		return
	}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(w, "[+%s]", d.Text)
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(w, "[-%s]", d.Text)
		default:
			fmt.Fprint(w, d.Text)
		}
	}
	fmt.Fprintln(w)
}
