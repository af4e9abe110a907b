package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
)

var csvHeader = []string{
	"id", "title", "author", "state", "created_at", "updated_at",
	"review_duration_days", "reviewer_count", "commit_count", "comment_count",
	"lines_added", "lines_removed", "total_lines_changed", "files_changed",
	"source_branch", "destination_branch", "size_category",
}

// WriteCSV writes one row per tuple after a header row. Numbers keep full
// precision; a missing review duration is an empty cell.
func WriteCSV(w io.Writer, tuples []domain.MetricTuple, includeFilesChanged bool) error {
	writer := csv.NewWriter(w)

	header := csvHeader
	if !includeFilesChanged {
		header = lo.Without(csvHeader, "files_changed")
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, t := range tuples {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Author,
			t.State.String(),
			formatTime(t.CreatedAt),
			formatTimePtr(t.UpdatedAt),
			formatFloatPtr(t.ReviewDuration),
			strconv.Itoa(t.ReviewerCount),
			strconv.Itoa(t.CommitCount),
			strconv.Itoa(t.CommentCount),
			strconv.Itoa(t.LinesAdded),
			strconv.Itoa(t.LinesRemoved),
			strconv.Itoa(t.TotalLinesChanged),
		}
		if includeFilesChanged {
			row = append(row, strconv.Itoa(t.FilesChanged))
		}
		row = append(row, t.SourceBranch, t.DestinationBranch, string(t.SizeCategory))

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
