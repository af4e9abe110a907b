// Package extractor turns one raw pull request into a metric tuple.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/logging"
	"github.com/managedkaos/pull-request-analysis/internal/nower"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

// ErrDetailFetch is returned when the identity of a record could not be loaded.
var ErrDetailFetch = errors.New("failed to fetch pull request detail")

// FailureRecorder is told about every sub-resource fetch that fell back to defaults.
type FailureRecorder interface {
	IncSubresourceFailure(kind string)
}

// Options tune how metrics are derived.
type Options struct {
	// IncludeFilesChanged reports the number of changed files.
	IncludeFilesChanged bool
	// IgnoreReviewers are participant names never counted as reviewers.
	IgnoreReviewers []string
}

// Extractor derives metric tuples from a source.
type Extractor struct {
	src      source.Source
	clock    nower.Nower
	logger   *zap.Logger
	failures FailureRecorder
	opts     Options
	ignored  map[string]struct{}
}

// New creates an Extractor. failures may be nil.
func New(src source.Source, clock nower.Nower, logger *zap.Logger, failures FailureRecorder, opts Options) *Extractor {
	return &Extractor{
		src:      src,
		clock:    clock,
		logger:   logger,
		failures: failures,
		opts:     opts,
		ignored: lo.SliceToMap(opts.IgnoreReviewers, func(name string) (string, struct{}) {
			return strings.ToLower(name), struct{}{}
		}),
	}
}

// Result is the outcome of one optional sub-resource fetch.
type Result[T any] struct {
	Items []T
	Err   error
}

// Count is the number of items, zero when the fetch failed.
func (r Result[T]) Count() int {
	if r.Err != nil {
		return 0
	}
	return len(r.Items)
}

func fetch[T any](ctx context.Context, rec domain.RawRecord, fn func(context.Context, domain.RawRecord) ([]T, error)) Result[T] {
	items, err := fn(ctx, rec)
	return Result[T]{Items: items, Err: err}
}

// Extract fetches the sub-resources of rec one after another (detail,
// commits, comments, diffstat) and builds its metric tuple. Only a failed
// detail fetch for a record without identity is returned as an error; every
// other failure is logged and replaced by a zero default.
func (e *Extractor) Extract(ctx context.Context, rec domain.RawRecord) (domain.MetricTuple, error) {
	if !rec.HasIdentity() {
		full, err := e.src.Get(ctx, rec.ID)
		if err != nil {
			return domain.MetricTuple{}, fmt.Errorf("%w #%d: %w", ErrDetailFetch, rec.ID, err)
		}
		rec = mergeIdentity(rec, full)
	}

	participants := fetch(ctx, rec, e.src.Participants)
	e.warnOnFailure(rec, domain.KindParticipants, participants.Err)

	commits := fetch(ctx, rec, e.src.Commits)
	e.warnOnFailure(rec, domain.KindCommits, commits.Err)

	comments := fetch(ctx, rec, e.src.Comments)
	e.warnOnFailure(rec, domain.KindComments, comments.Err)

	files := fetch(ctx, rec, e.src.DiffStat)
	if files.Err == nil {
		if bad, found := lo.Find(files.Items, func(f domain.FileStat) bool {
			return f.LinesAdded < 0 || f.LinesRemoved < 0
		}); found {
			files.Err = fmt.Errorf("negative line count for %q", bad.Path)
		}
	}
	e.warnOnFailure(rec, domain.KindDiffStat, files.Err)

	tuple := domain.NewMetricTuple(rec)
	tuple.ReviewDuration = ReviewDuration(rec, e.clock.Now())
	tuple.ReviewerCount = e.countReviewers(rec, participants)
	tuple.CommitCount = commits.Count()
	tuple.CommentCount = comments.Count()

	if files.Err == nil {
		added := lo.SumBy(files.Items, func(f domain.FileStat) int { return f.LinesAdded })
		removed := lo.SumBy(files.Items, func(f domain.FileStat) int { return f.LinesRemoved })
		changed := 0
		if e.opts.IncludeFilesChanged {
			changed = len(files.Items)
		}
		tuple = tuple.WithChurn(added, removed, changed)
	}

	return tuple, nil
}

// ReviewDuration is the review time of rec in fractional days. Finished
// records measure creation to resolution, open records creation to now.
// It is nil when the needed timestamps are missing or out of order.
func ReviewDuration(rec domain.RawRecord, now time.Time) *float64 {
	if rec.CreatedAt.IsZero() {
		return nil
	}

	var end time.Time
	switch {
	case rec.State.Terminal() && rec.ResolvedAt != nil:
		end = *rec.ResolvedAt
	case rec.State == domain.StateOpen:
		end = now
	default:
		return nil
	}

	if end.Before(rec.CreatedAt) {
		return nil
	}
	days := end.Sub(rec.CreatedAt).Hours() / 24
	return &days
}

func (e *Extractor) countReviewers(rec domain.RawRecord, participants Result[domain.Participant]) int {
	if participants.Err != nil {
		return 0
	}
	return lo.CountBy(participants.Items, func(p domain.Participant) bool {
		if p.Role != domain.RoleReviewer {
			return false
		}
		if strings.EqualFold(p.Name, rec.Author) {
			return false
		}
		_, skip := e.ignored[strings.ToLower(p.Name)]
		return !skip
	})
}

func (e *Extractor) warnOnFailure(rec domain.RawRecord, kind domain.SubresourceKind, err error) {
	if err == nil {
		return
	}
	e.logger.Warn("sub-resource fetch failed, using defaults",
		logging.PR(rec.ID), logging.Kind(string(kind)), zap.Error(err))
	if e.failures != nil {
		e.failures.IncSubresourceFailure(string(kind))
	}
}

// mergeIdentity fills the fields the listing left empty from the detail record.
func mergeIdentity(listed, detail domain.RawRecord) domain.RawRecord {
	if listed.Title == "" {
		listed.Title = detail.Title
	}
	if listed.Author == "" {
		listed.Author = detail.Author
	}
	if listed.State == "" {
		listed.State = detail.State
	}
	if listed.CreatedAt.IsZero() {
		listed.CreatedAt = detail.CreatedAt
	}
	if listed.UpdatedAt == nil {
		listed.UpdatedAt = detail.UpdatedAt
	}
	if listed.ResolvedAt == nil {
		listed.ResolvedAt = detail.ResolvedAt
	}
	if listed.SourceBranch == "" {
		listed.SourceBranch = detail.SourceBranch
	}
	if listed.DestinationBranch == "" {
		listed.DestinationBranch = detail.DestinationBranch
	}
	if len(listed.Links) == 0 {
		listed.Links = detail.Links
	}
	if listed.Participants == nil {
		listed.Participants = detail.Participants
	}
	return listed
}
