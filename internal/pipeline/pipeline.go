// Package pipeline drives one analysis run: list, select, extract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/extractor"
	"github.com/managedkaos/pull-request-analysis/internal/logging"
	"github.com/managedkaos/pull-request-analysis/internal/metrics"
	"github.com/managedkaos/pull-request-analysis/internal/nower"
	"github.com/managedkaos/pull-request-analysis/internal/selector"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

// Options select what a run analyzes.
type Options struct {
	State domain.State
	// Limit caps the number of analyzed records. Zero means no cap.
	Limit int
	// Days restricts the run to recent activity. Zero means all time.
	Days int
	// SingleID analyzes exactly one pull request and ignores the filters.
	SingleID            *int64
	IncludeFilesChanged bool
}

// Result is the outcome of a run. Tuples are in source order.
type Result struct {
	RunID  string
	Tuples []domain.MetricTuple
	// Cancelled is set when the context ended before the source was exhausted.
	Cancelled bool
	// SourceErr is the listing error that cut a batch run short, if any.
	SourceErr  error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner wires a source to the selector and extractor.
type Runner struct {
	src             source.Source
	clock           nower.Nower
	logger          *zap.Logger
	metrics         *metrics.Run
	ignoreReviewers []string
	newID           func() string
}

// New creates a Runner. ignoreReviewers are never counted as reviewers.
// A nil run collects metrics on a private registry.
func New(src source.Source, clock nower.Nower, logger *zap.Logger, run *metrics.Run, ignoreReviewers []string) *Runner {
	if run == nil {
		run = metrics.NewRun()
	}
	return &Runner{
		src:             src,
		clock:           clock,
		logger:          logger,
		metrics:         run,
		ignoreReviewers: ignoreReviewers,
		newID:           uuid.NewString,
	}
}

// Run executes one analysis. Records are extracted one at a time, each
// before the next is pulled from the source. Cancellation of ctx is not an
// error: the tuples gathered so far are returned with Cancelled set. A
// listing error is only returned when no record was analyzed; otherwise it
// is kept in Result.SourceErr next to the partial results.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	res := Result{RunID: r.newID(), StartedAt: r.clock.Now()}
	logger := r.logger.With(zap.String(logging.KeyRunID, res.RunID))

	ext := extractor.New(r.src, r.clock, logger, r.metrics, extractor.Options{
		IncludeFilesChanged: opts.IncludeFilesChanged,
		IgnoreReviewers:     r.ignoreReviewers,
	})

	var err error
	if opts.SingleID != nil {
		err = r.runSingle(ctx, ext, *opts.SingleID, &res)
	} else {
		r.runBatch(ctx, logger, ext, opts, &res)
		if res.SourceErr != nil && len(res.Tuples) == 0 {
			err = fmt.Errorf("list pull requests: %w", res.SourceErr)
		}
	}

	res.FinishedAt = r.clock.Now()
	r.metrics.ObserveDuration(res.FinishedAt.Sub(res.StartedAt))

	if err != nil {
		return res, err
	}
	logger.Info("analysis finished",
		zap.Int("analyzed", len(res.Tuples)),
		zap.Bool("cancelled", res.Cancelled),
		zap.NamedError("source_error", res.SourceErr))
	return res, nil
}

func (r *Runner) runSingle(ctx context.Context, ext *extractor.Extractor, id int64, res *Result) error {
	rec, err := r.src.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("pull request #%d: %w", id, err)
	}
	r.metrics.IncListed()
	r.metrics.IncSelected()

	tuple, err := ext.Extract(ctx, rec)
	if err != nil {
		return fmt.Errorf("analyze pull request #%d: %w", id, err)
	}
	r.metrics.IncExtracted()
	res.Tuples = append(res.Tuples, tuple)
	return nil
}

func (r *Runner) runBatch(ctx context.Context, logger *zap.Logger, ext *extractor.Extractor, opts Options, res *Result) {
	if ctx.Err() != nil {
		res.Cancelled = true
		return
	}

	records := selector.Select(r.counted(r.src.List(ctx, opts.State)), selector.Criteria{
		State: opts.State,
		Limit: opts.Limit,
		Days:  opts.Days,
		Now:   r.clock.Now(),
	})

	for rec, err := range records {
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				res.Cancelled = true
				return
			}
			logger.Error("listing pull requests failed, keeping partial results", zap.Error(err))
			res.SourceErr = err
			return
		}
		if ctx.Err() != nil {
			res.Cancelled = true
			return
		}
		r.metrics.IncSelected()

		tuple, err := ext.Extract(ctx, rec)
		if ctx.Err() != nil {
			logger.Info("run interrupted, discarding in-flight pull request", logging.PR(rec.ID))
			res.Cancelled = true
			return
		}
		if err != nil {
			logger.Warn("skipping pull request", logging.PR(rec.ID), zap.Error(err))
			r.metrics.IncSkipped()
			continue
		}

		r.metrics.IncExtracted()
		res.Tuples = append(res.Tuples, tuple)
		logger.Debug("analyzed pull request", logging.PR(rec.ID),
			zap.String("size", string(tuple.SizeCategory)))
	}
}

// counted passes records through unchanged while counting them.
func (r *Runner) counted(seq iter.Seq2[domain.RawRecord, error]) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		for rec, err := range seq {
			if err == nil {
				r.metrics.IncListed()
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}
