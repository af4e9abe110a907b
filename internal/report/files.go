package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/stats"
)

// WriteFiles writes the CSV and Markdown reports. An empty path skips that
// output. Parent directories are created as needed.
func WriteFiles(csvPath, markdownPath string, tuples []domain.MetricTuple, summary *stats.Summary, meta Meta) error {
	if csvPath != "" {
		err := writeFile(csvPath, func(f *os.File) error {
			return WriteCSV(f, tuples, meta.IncludeFilesChanged)
		})
		if err != nil {
			return fmt.Errorf("failed to write CSV report: %w", err)
		}
	}

	if markdownPath != "" {
		err := writeFile(markdownPath, func(f *os.File) error {
			return WriteMarkdown(f, summary, meta)
		})
		if err != nil {
			return fmt.Errorf("failed to write Markdown report: %w", err)
		}
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
