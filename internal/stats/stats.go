// Package stats summarizes a collection of metric tuples.
package stats

import (
	"errors"
	"slices"

	"github.com/samber/lo"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
)

// ErrNoData is returned when there is nothing to summarize.
var ErrNoData = errors.New("no pull requests to summarize")

// FieldStats describes one numeric metric across a collection.
type FieldStats struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Total  float64
}

// SizeBucket is the share of pull requests in one size category.
type SizeBucket struct {
	Category   domain.SizeCategory
	Count      int
	Percentage float64
}

// Summary holds the statistics of one run.
type Summary struct {
	Count int

	// ReviewDuration is nil when no tuple had a known duration.
	ReviewDuration *FieldStats

	Reviewers         FieldStats
	Commits           FieldStats
	Comments          FieldStats
	LinesAdded        FieldStats
	LinesRemoved      FieldStats
	TotalLinesChanged FieldStats
	FilesChanged      FieldStats

	Sizes []SizeBucket
}

// Describe computes the statistics of values. The median is the element at
// index n/2 of the sorted values, which for an even count is the upper of
// the two middle elements. This matches reports produced by earlier
// versions of the tool. ok is false for an empty input.
func Describe(values []float64) (FieldStats, bool) {
	if len(values) == 0 {
		return FieldStats{}, false
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	total := lo.Sum(sorted)
	return FieldStats{
		Count:  len(sorted),
		Mean:   total / float64(len(sorted)),
		Median: sorted[len(sorted)/2],
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Total:  total,
	}, true
}

// Summarize aggregates tuples. It returns ErrNoData for an empty collection.
func Summarize(tuples []domain.MetricTuple) (Summary, error) {
	if len(tuples) == 0 {
		return Summary{}, ErrNoData
	}

	s := Summary{
		Count:             len(tuples),
		Reviewers:         describeInt(tuples, func(t domain.MetricTuple) int { return t.ReviewerCount }),
		Commits:           describeInt(tuples, func(t domain.MetricTuple) int { return t.CommitCount }),
		Comments:          describeInt(tuples, func(t domain.MetricTuple) int { return t.CommentCount }),
		LinesAdded:        describeInt(tuples, func(t domain.MetricTuple) int { return t.LinesAdded }),
		LinesRemoved:      describeInt(tuples, func(t domain.MetricTuple) int { return t.LinesRemoved }),
		TotalLinesChanged: describeInt(tuples, func(t domain.MetricTuple) int { return t.TotalLinesChanged }),
		FilesChanged:      describeInt(tuples, func(t domain.MetricTuple) int { return t.FilesChanged }),
		Sizes:             Distribution(tuples),
	}

	durations := lo.FilterMap(tuples, func(t domain.MetricTuple, _ int) (float64, bool) {
		if t.ReviewDuration == nil {
			return 0, false
		}
		return *t.ReviewDuration, true
	})
	if d, ok := Describe(durations); ok {
		s.ReviewDuration = &d
	}

	return s, nil
}

// Distribution counts tuples per size category. Every category is present,
// and percentages are relative to the full collection.
func Distribution(tuples []domain.MetricTuple) []SizeBucket {
	counts := lo.CountValuesBy(tuples, func(t domain.MetricTuple) domain.SizeCategory {
		return t.SizeCategory
	})

	buckets := make([]SizeBucket, 0, len(domain.AllSizeCategories))
	for _, cat := range domain.AllSizeCategories {
		b := SizeBucket{Category: cat, Count: counts[cat]}
		if len(tuples) > 0 {
			b.Percentage = float64(b.Count) / float64(len(tuples)) * 100
		}
		buckets = append(buckets, b)
	}
	return buckets
}

func describeInt(tuples []domain.MetricTuple, field func(domain.MetricTuple) int) FieldStats {
	values := lo.Map(tuples, func(t domain.MetricTuple, _ int) float64 {
		return float64(field(t))
	})
	s, _ := Describe(values)
	return s
}
