package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/managedkaos/pull-request-analysis/internal/stats"
)

// NoDataMessage is printed instead of statistics for an empty run.
const NoDataMessage = "No pull requests to analyze"

// WriteMarkdown renders the summary as a Markdown report. A nil summary
// produces the header and a note that there was nothing to analyze.
func WriteMarkdown(w io.Writer, summary *stats.Summary, meta Meta) error {
	var b strings.Builder

	count := 0
	if summary != nil {
		count = summary.Count
	}

	b.WriteString("# Pull Request Analysis Report\n\n")
	fmt.Fprintf(&b, "**Repository:** %s\n", meta.Repository)
	fmt.Fprintf(&b, "**Generated:** %s\n", meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	if meta.RunID != "" {
		fmt.Fprintf(&b, "**Run ID:** %s\n", meta.RunID)
	}
	fmt.Fprintf(&b, "**State:** %s\n", meta.State)
	fmt.Fprintf(&b, "**Analysis Period:** %s\n", meta.window())
	fmt.Fprintf(&b, "**Total PRs analyzed:** %d\n", count)
	if meta.Cancelled {
		b.WriteString("\n> Run was interrupted; the report covers the pull requests analyzed before the interrupt.\n")
	}

	if summary == nil {
		fmt.Fprintf(&b, "\n%s.\n", NoDataMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n## Summary\n\n")
	reviewed := 0
	if summary.ReviewDuration != nil {
		reviewed = summary.ReviewDuration.Count
	}
	fmt.Fprintf(&b, "- **Pull requests:** %d\n", summary.Count)
	fmt.Fprintf(&b, "- **With known %s:** %d\n", strings.ToLower(meta.DurationTitle()), reviewed)
	fmt.Fprintf(&b, "- **Total lines changed:** %.0f\n", summary.TotalLinesChanged.Total)
	fmt.Fprintf(&b, "- **Total commits:** %.0f\n", summary.Commits.Total)

	b.WriteString("\n## PR Size Distribution\n\n")
	b.WriteString("| Size | Count | Percentage |\n")
	b.WriteString("|------|-------|------------|\n")
	for _, bucket := range summary.Sizes {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", bucket.Category, bucket.Count, bucket.Percentage)
	}

	if d := summary.ReviewDuration; d != nil {
		fmt.Fprintf(&b, "\n## %s\n\n", meta.DurationTitle())
		b.WriteString("| Metric | Days | Hours |\n")
		b.WriteString("|--------|------|-------|\n")
		for _, row := range rows(*d) {
			fmt.Fprintf(&b, "| %s | %.2f | %.2f |\n", row.label, row.value, row.value*24)
		}
	}

	writeCountTable(&b, "Commits per PR", summary.Commits)
	writeCountTable(&b, "Comments per PR", summary.Comments)
	writeCountTable(&b, "Reviewers per PR", summary.Reviewers)

	b.WriteString("\n## Code Changes\n\n")
	b.WriteString("| Metric | Lines Added | Lines Removed | Total Changed |\n")
	b.WriteString("|--------|-------------|---------------|---------------|\n")
	added, removed, total := rows(summary.LinesAdded), rows(summary.LinesRemoved), rows(summary.TotalLinesChanged)
	for i := range total {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			total[i].label, formatCount(added[i]), formatCount(removed[i]), formatCount(total[i]))
	}

	if meta.IncludeFilesChanged {
		writeCountTable(&b, "Files Changed", summary.FilesChanged)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type row struct {
	label   string
	value   float64
	average bool
}

func rows(s stats.FieldStats) []row {
	return []row{
		{label: "Average", value: s.Mean, average: true},
		{label: "Median", value: s.Median},
		{label: "Min", value: s.Min},
		{label: "Max", value: s.Max},
		{label: "Total", value: s.Total},
	}
}

// formatCount prints averages with two decimals and whole counts without.
func formatCount(r row) string {
	if r.average {
		return fmt.Sprintf("%.2f", r.value)
	}
	return fmt.Sprintf("%.0f", r.value)
}

func writeCountTable(b *strings.Builder, title string, s stats.FieldStats) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	for _, r := range rows(s) {
		fmt.Fprintf(b, "| %s | %s |\n", r.label, formatCount(r))
	}
}
