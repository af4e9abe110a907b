package domain

import "time"

// SizeCategory buckets a pull request by total lines changed.
type SizeCategory string

const (
	SizeXS SizeCategory = "XS"
	SizeS  SizeCategory = "S"
	SizeM  SizeCategory = "M"
	SizeL  SizeCategory = "L"
	SizeXL SizeCategory = "XL"
)

// AllSizeCategories is the display order of size buckets.
var AllSizeCategories = []SizeCategory{SizeXS, SizeS, SizeM, SizeL, SizeXL}

// CategorizeSize maps total changed lines to a size bucket.
func CategorizeSize(totalLines int) SizeCategory {
	switch {
	case totalLines < 10:
		return SizeXS
	case totalLines < 50:
		return SizeS
	case totalLines < 200:
		return SizeM
	case totalLines < 500:
		return SizeL
	default:
		return SizeXL
	}
}

// MetricTuple holds the metrics derived for one pull request.
type MetricTuple struct {
	ID                int64
	Title             string
	Author            string
	State             State
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	SourceBranch      string
	DestinationBranch string

	// ReviewDuration is in fractional days, nil when unknown.
	ReviewDuration *float64

	ReviewerCount int
	CommitCount   int
	CommentCount  int

	LinesAdded        int
	LinesRemoved      int
	TotalLinesChanged int
	FilesChanged      int
	SizeCategory      SizeCategory
}

// NewMetricTuple copies the identity of rec into an empty tuple.
func NewMetricTuple(rec RawRecord) MetricTuple {
	t := MetricTuple{
		ID:                rec.ID,
		Title:             rec.Title,
		Author:            rec.Author,
		State:             rec.State,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
		SourceBranch:      rec.SourceBranch,
		DestinationBranch: rec.DestinationBranch,
	}
	return t.WithChurn(0, 0, 0)
}

// WithChurn returns a copy of t with the code churn fields set.
// Total and size category are always derived here.
func (t MetricTuple) WithChurn(added, removed, files int) MetricTuple {
	t.LinesAdded = added
	t.LinesRemoved = removed
	t.TotalLinesChanged = added + removed
	t.FilesChanged = files
	t.SizeCategory = CategorizeSize(t.TotalLinesChanged)
	return t
}
