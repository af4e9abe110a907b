package report

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/managedkaos/pull-request-analysis/internal/stats"
)

// PrintConsole writes a short tabular summary for the terminal.
func PrintConsole(w io.Writer, summary *stats.Summary, meta Meta) error {
	fmt.Fprintln(w, pterm.Bold.Sprint("Pull Request Analysis: "+meta.Repository))
	fmt.Fprintf(w, "State: %s  Window: %s  Run: %s\n", meta.State, meta.window(), meta.RunID)
	if meta.Cancelled {
		fmt.Fprintln(w, pterm.Yellow("Interrupted; results are partial."))
	}

	if summary == nil {
		fmt.Fprintln(w, NoDataMessage)
		return nil
	}
	fmt.Fprintf(w, "Pull requests analyzed: %d\n\n", summary.Count)

	data := pterm.TableData{{"Metric", "Average", "Median", "Min", "Max", "Total"}}
	if d := summary.ReviewDuration; d != nil {
		data = append(data, durationRow(meta.DurationTitle()+" (days)", *d))
	}
	data = append(data,
		countRow("Reviewers", summary.Reviewers),
		countRow("Commits", summary.Commits),
		countRow("Comments", summary.Comments),
		countRow("Lines added", summary.LinesAdded),
		countRow("Lines removed", summary.LinesRemoved),
		countRow("Lines changed", summary.TotalLinesChanged),
	)
	if meta.IncludeFilesChanged {
		data = append(data, countRow("Files changed", summary.FilesChanged))
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render summary table: %w", err)
	}
	fmt.Fprintln(w, table)

	sizes := pterm.TableData{{"Size", "Count", "Percentage"}}
	for _, b := range summary.Sizes {
		sizes = append(sizes, []string{
			string(b.Category), itoa(b.Count), fmt.Sprintf("%.1f%%", b.Percentage),
		})
	}
	table, err = pterm.DefaultTable.WithHasHeader().WithData(sizes).Srender()
	if err != nil {
		return fmt.Errorf("failed to render size table: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, table)
	return nil
}

func durationRow(label string, s stats.FieldStats) []string {
	return []string{
		label,
		fmt.Sprintf("%.2f", s.Mean),
		fmt.Sprintf("%.2f", s.Median),
		fmt.Sprintf("%.2f", s.Min),
		fmt.Sprintf("%.2f", s.Max),
		fmt.Sprintf("%.2f", s.Total),
	}
}

func countRow(label string, s stats.FieldStats) []string {
	out := []string{label}
	for _, r := range rows(s) {
		out = append(out, formatCount(r))
	}
	return out
}
