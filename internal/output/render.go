package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styles used by the human-readable renderers.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	badgeStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	contentStyle = lipgloss.NewStyle().PaddingLeft(2)
)

// IsInteractive reports whether w is a color-capable terminal. NO_COLOR
// disables styling regardless.
func IsInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !term.IsTerminal(int(f.Fd())) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return termenv.NewOutput(f).ColorProfile() != termenv.Ascii
}

// terminalWidth returns the render width for w, defaulting to 100 columns
// off-terminal.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			if width > 120 {
				return 120
			}
			return width
		}
	}
	return 100
}

// confidenceStyle picks a color band for a confidence score.
func confidenceStyle(conf float64) lipgloss.Style {
	switch {
	case conf >= 0.8:
		return okStyle
	case conf >= 0.5:
		return warnStyle
	default:
		return failStyle
	}
}

// RenderThink writes a fused answer for a human: a header line with mode,
// strategy, and scores, the sources table, and the answer rendered as
// markdown when the terminal supports it.
func RenderThink(w io.Writer, resp ThinkResponse) {
	styled := IsInteractive(w)
	width := terminalWidth(w)

	if !styled {
		fmt.Fprintf(w, "mode=%s strategy=%s confidence=%.2f agreement=%.2f\n\n",
			resp.Mode, resp.Strategy, resp.Confidence, resp.Agreement)
		writeSourcesTable(w, resp.Sources, false)
		fmt.Fprintln(w)
		fmt.Fprintln(w, resp.Content)
		return
	}

	header := fmt.Sprintf("%s  %s  %s %s  %s %s",
		badgeStyle.Render(strings.ToUpper(resp.Mode)),
		valueStyle.Render(resp.Strategy),
		labelStyle.Render("confidence"),
		confidenceStyle(resp.Confidence).Render(fmt.Sprintf("%.2f", resp.Confidence)),
		labelStyle.Render("agreement"),
		valueStyle.Render(fmt.Sprintf("%.2f", resp.Agreement)))
	fmt.Fprintln(w, header)
	fmt.Fprintln(w)
	writeSourcesTable(w, resp.Sources, true)
	fmt.Fprintln(w)

	rendered, err := renderMarkdown(resp.Content, width)
	if err != nil {
		rendered = contentStyle.Render(wordwrap.String(resp.Content, width-2))
	}
	fmt.Fprintln(w, rendered)
}

func renderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// writeSourcesTable prints one aligned row per fan-out leg.
func writeSourcesTable(w io.Writer, sources []SourceResponse, styled bool) {
	idWidth := 0
	for _, s := range sources {
		if n := runewidth.StringWidth(s.Backend + "/" + s.Model); n > idWidth {
			idWidth = n
		}
	}
	for _, s := range sources {
		id := runewidth.FillRight(s.Backend+"/"+s.Model, idWidth)
		mark, detail := "ok", fmt.Sprintf("%7.0fms  %d tokens", s.LatencyMs, s.Tokens)
		if !s.OK {
			mark, detail = "fail", fmt.Sprintf("%7.0fms  %s", s.LatencyMs, s.Error)
		}
		if !styled {
			fmt.Fprintf(w, "  %-4s %s %s\n", mark, id, detail)
			continue
		}
		markStyled := okStyle.Render("✓")
		if !s.OK {
			markStyled = failStyle.Render("✗")
		}
		fmt.Fprintf(w, "  %s %s %s\n", markStyled, valueStyle.Render(id), dimStyle.Render(detail))
	}
}

// RenderRoute writes a routing decision for a human.
func RenderRoute(w io.Writer, resp RouteResponse) {
	styled := IsInteractive(w)
	if styled {
		fmt.Fprintf(w, "%s  %s %s\n",
			badgeStyle.Render(strings.ToUpper(resp.Mode)),
			labelStyle.Render("confidence"),
			confidenceStyle(resp.Confidence).Render(fmt.Sprintf("%.2f", resp.Confidence)))
	} else {
		fmt.Fprintf(w, "mode=%s confidence=%.2f\n", resp.Mode, resp.Confidence)
	}
	fmt.Fprintf(w, "  %s\n", resp.Reason)

	dims := make([]string, 0, len(resp.Signals))
	for dim := range resp.Signals {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	for _, dim := range dims {
		line := fmt.Sprintf("  %s %.2f", runewidth.FillRight(dim, 10), resp.Signals[dim])
		if styled {
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

// RenderStats writes aggregate stats for a human.
func RenderStats(w io.Writer, resp StatsResponse) {
	styled := IsInteractive(w)
	title := "Thinking stats"
	if styled {
		title = titleStyle.Render(title)
	}
	fmt.Fprintln(w, title)
	rows := []struct {
		label string
		value string
	}{
		{"calls", fmt.Sprintf("%d", resp.TotalCalls)},
		{"avg confidence", fmt.Sprintf("%.2f", resp.AvgConfidence)},
		{"avg agreement", fmt.Sprintf("%.2f", resp.AvgAgreement)},
		{"avg latency", fmt.Sprintf("%.0fms", resp.AvgLatencyMs)},
		{"success rate", fmt.Sprintf("%.0f%%", resp.SuccessRate*100)},
	}
	for _, row := range rows {
		label := runewidth.FillRight(row.label, 16)
		if styled {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label), valueStyle.Render(row.value))
		} else {
			fmt.Fprintf(w, "  %s %s\n", label, row.value)
		}
	}
	writeCountMap(w, "by mode", resp.ByMode, styled)
	writeCountMap(w, "by strategy", resp.ByStrategy, styled)
}

func writeCountMap(w io.Writer, title string, counts map[string]int, styled bool) {
	if len(counts) == 0 {
		return
	}
	if styled {
		fmt.Fprintf(w, "  %s\n", labelStyle.Render(title))
	} else {
		fmt.Fprintf(w, "  %s\n", title)
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %s %d\n", runewidth.FillRight(k, 20), counts[k])
	}
}

// RenderStatus writes the orchestra status for a human.
func RenderStatus(w io.Writer, resp StatusResponse) {
	styled := IsInteractive(w)
	title := "Orchestra status"
	if styled {
		title = titleStyle.Render(title)
	}
	fmt.Fprintln(w, title)
	judge := "none"
	if resp.JudgeConfigured {
		judge = resp.Judge
	}
	rows := []struct {
		label string
		value string
	}{
		{"uptime", fmt.Sprintf("%.0fs", resp.UptimeSeconds)},
		{"default strategy", resp.DefaultStrategy},
		{"judge", judge},
		{"pool size", fmt.Sprintf("%d", resp.PoolSize)},
		{"history", fmt.Sprintf("%d calls", resp.HistoryLength)},
	}
	for _, row := range rows {
		label := runewidth.FillRight(row.label, 18)
		if styled {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label), valueStyle.Render(row.value))
		} else {
			fmt.Fprintf(w, "  %s %s\n", label, row.value)
		}
	}

	modes := make([]string, 0, len(resp.ModesAvailable))
	for mode := range resp.ModesAvailable {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		backends := resp.ModesAvailable[mode]
		line := fmt.Sprintf("  %s ", runewidth.FillRight(mode, 18))
		if len(backends) == 0 {
			if styled {
				line += failStyle.Render("no backends configured")
			} else {
				line += "no backends configured"
			}
		} else {
			joined := strings.Join(backends, ", ")
			if styled {
				line += okStyle.Render(joined)
			} else {
				line += joined
			}
		}
		fmt.Fprintln(w, line)
	}
}

// RenderHistory writes recent records for a human, oldest first.
func RenderHistory(w io.Writer, resp HistoryResponse) {
	styled := IsInteractive(w)
	if len(resp.Records) == 0 {
		fmt.Fprintln(w, "no thinking history yet")
		return
	}
	for _, rec := range resp.Records {
		ts := rec.Timestamp.Local().Format("2006-01-02 15:04:05")
		winner := "-"
		if rec.Winner != nil {
			winner = *rec.Winner
		}
		line := fmt.Sprintf("%s  %-14s %-18s %d/%d ok  conf %.2f  %s",
			ts, rec.Mode, rec.Strategy, rec.ModelsSucceeded, rec.ModelsQueried, rec.Confidence, winner)
		if styled {
			if rec.ModelsSucceeded == 0 {
				line = failStyle.Render(line)
			} else if rec.Confidence < 0.5 {
				line = warnStyle.Render(line)
			}
		}
		fmt.Fprintln(w, line)
	}
}
