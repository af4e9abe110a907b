// Package report renders metric tuples and summaries for people and spreadsheets.
package report

import (
	"time"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
)

// Meta describes the run a report belongs to.
type Meta struct {
	Repository  string
	GeneratedAt time.Time
	RunID       string
	State       domain.State
	Days        int
	Limit       int
	Cancelled   bool
	// IncludeFilesChanged adds the files-changed column and section.
	IncludeFilesChanged bool
}

// DurationTitle names the review duration section. For open pull requests
// the duration is the time since creation rather than a review time.
func (m Meta) DurationTitle() string {
	if m.State == domain.StateOpen {
		return "Time Since Creation"
	}
	return "Review Time"
}

func (m Meta) window() string {
	if m.Days <= 0 {
		return "All time"
	}
	if m.Days == 1 {
		return "Last day"
	}
	return "Last " + itoa(m.Days) + " days"
}
