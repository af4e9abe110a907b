// Package selector narrows a record stream by state, time window and count.
package selector

import (
	"iter"
	"time"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
)

// Criteria are the predicates a record must satisfy.
type Criteria struct {
	State domain.State
	// Limit caps the number of records yielded. Zero or less means no cap.
	Limit int
	// Days keeps only records active within the last Days days. Zero disables the window.
	Days int
	Now  time.Time
}

// Cutoff is the oldest instant inside the window.
func (c Criteria) Cutoff() (time.Time, bool) {
	if c.Days <= 0 {
		return time.Time{}, false
	}
	return c.Now.Add(-time.Duration(c.Days) * 24 * time.Hour), true
}

// Select yields the records of src that match c, in source order. It pulls
// from src only as far as needed: once Limit records have been yielded, or
// once a record was last updated before the window, the source is not read
// again. src must be ordered by update time, newest first. A source error is
// yielded and ends the sequence.
func Select(src iter.Seq2[domain.RawRecord, error], c Criteria) iter.Seq2[domain.RawRecord, error] {
	cutoff, windowed := c.Cutoff()

	return func(yield func(domain.RawRecord, error) bool) {
		taken := 0
		for rec, err := range src {
			if err != nil {
				yield(domain.RawRecord{}, err)
				return
			}
			// Creation and resolution never come after the last update.
			if windowed && rec.UpdatedAt != nil && rec.UpdatedAt.Before(cutoff) {
				return
			}
			if c.State != "" && rec.State != c.State {
				continue
			}
			if windowed && !InWindow(rec, cutoff) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
			taken++
			if c.Limit > 0 && taken >= c.Limit {
				return
			}
		}
	}
}

// InWindow reports whether rec is at or after cutoff. Finished records are
// judged by their resolution time, open ones by their creation time. A
// record without the needed timestamp is outside every window.
func InWindow(rec domain.RawRecord, cutoff time.Time) bool {
	if rec.State.Terminal() {
		return rec.ResolvedAt != nil && !rec.ResolvedAt.Before(cutoff)
	}
	return !rec.CreatedAt.IsZero() && !rec.CreatedAt.Before(cutoff)
}
