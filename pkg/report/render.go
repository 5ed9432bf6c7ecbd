package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// RenderOptions controls the human-readable report formatting. Rendering
// is a pure function of the Report value, so it is testable without
// capturing process streams.
type RenderOptions struct {
	// Color enables ANSI styling. Callers toggle it off for silent mode
	// or non-terminal output.
	Color bool

	// ErrorsOnly omits warning counts from every row.
	ErrorsOnly bool
}

var (
	stylePass    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
	styleWarn    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	styleFail    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("167"))
	styleSkip    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
)

// Render writes the final summary for rep to w. Rows follow the matrix's
// canonical order; a trailing line carries the aggregate totals.
func Render(w io.Writer, rep Report, opts RenderOptions) {
	paint := func(style lipgloss.Style, s string) string {
		if !opts.Color {
			return s
		}
		return style.Render(s)
	}

	packages := make(map[string]bool)
	var mostErrors, mostWarnings int
	for _, res := range rep.Results {
		packages[res.Entry.Package] = true
		if res.Errors > mostErrors {
			mostErrors = res.Errors
		}
		if res.Warnings > mostWarnings {
			mostWarnings = res.Warnings
		}
	}
	errWidth := len(fmt.Sprint(mostErrors))
	warnWidth := len(fmt.Sprint(mostWarnings))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d total feature %s for %d %s in %s\n",
		paint(styleHeading, "    Finished"),
		rep.Total, plural("combination", rep.Total),
		len(packages), plural("package", len(packages)),
		rep.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)

	for _, res := range rep.Results {
		var status string
		switch {
		case !res.Recorded:
			status = paint(styleSkip, "        SKIP ")
		case !res.Success:
			status = paint(styleFail, "        FAIL ")
		case res.Warnings > 0:
			status = paint(styleWarn, "        WARN ")
		default:
			status = paint(stylePass, "        PASS ")
		}

		var counts string
		if opts.ErrorsOnly {
			counts = fmt.Sprintf("%*d errors", errWidth, res.Errors)
		} else {
			counts = fmt.Sprintf("%*d errors, %*d warnings", errWidth, res.Errors, warnWidth, res.Warnings)
		}

		line := fmt.Sprintf("%s%s ( %s, features = %s )",
			status, res.Entry.Package, counts, res.Entry.Features.Display())
		if len(res.Codes) > 0 {
			line += " [" + strings.Join(res.Codes, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	if rep.Success() {
		fmt.Fprintf(w, "%s %d/%d feature %s passed\n",
			paint(stylePass, "        PASS"), rep.Succeeded, rep.Total, plural("set", rep.Total))
		return
	}
	skipped := rep.Total - rep.Completed
	summary := fmt.Sprintf("%d/%d feature %s failed", rep.Failed, rep.Total, plural("set", rep.Total))
	if skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", skipped)
	}
	fmt.Fprintf(w, "%s %s\n", paint(styleFail, "        FAIL"), summary)
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
