// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"fmt"
	"iter"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

// Fake serves records and sub-resources from memory and records how it was used.
type Fake struct {
	Records []domain.RawRecord

	// ListErr, when set, is yielded by List after ListErrAfter records.
	ListErrAfter int
	ListErr      error

	ParticipantsByID map[int64][]domain.Participant
	CommitsByID      map[int64][]domain.Commit
	CommentsByID     map[int64][]domain.Comment
	FilesByID        map[int64][]domain.FileStat

	// Errs makes the given sub-resource kind fail for every record.
	Errs map[domain.SubresourceKind]error
	// GetErr makes Get fail.
	GetErr error

	// OnFetch is called before every sub-resource fetch.
	OnFetch func(id int64, kind domain.SubresourceKind)

	Pulled int
	Calls  []string
}

var _ source.Source = (*Fake)(nil)

func (f *Fake) List(_ context.Context, state domain.State) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		for i, r := range f.Records {
			if f.ListErr != nil && i == f.ListErrAfter {
				yield(domain.RawRecord{}, f.ListErr)
				return
			}
			f.Pulled++
			if !yield(r, nil) {
				return
			}
		}
		if f.ListErr != nil && f.ListErrAfter >= len(f.Records) {
			yield(domain.RawRecord{}, f.ListErr)
		}
	}
}

func (f *Fake) Get(_ context.Context, id int64) (domain.RawRecord, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("get:%d", id))
	if f.GetErr != nil {
		return domain.RawRecord{}, f.GetErr
	}
	for _, r := range f.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.RawRecord{}, source.ErrNotFound
}

func (f *Fake) Participants(_ context.Context, rec domain.RawRecord) ([]domain.Participant, error) {
	if err := f.fetch(rec.ID, domain.KindParticipants); err != nil {
		return nil, err
	}
	return f.ParticipantsByID[rec.ID], nil
}

func (f *Fake) Commits(_ context.Context, rec domain.RawRecord) ([]domain.Commit, error) {
	if err := f.fetch(rec.ID, domain.KindCommits); err != nil {
		return nil, err
	}
	return f.CommitsByID[rec.ID], nil
}

func (f *Fake) Comments(_ context.Context, rec domain.RawRecord) ([]domain.Comment, error) {
	if err := f.fetch(rec.ID, domain.KindComments); err != nil {
		return nil, err
	}
	return f.CommentsByID[rec.ID], nil
}

func (f *Fake) DiffStat(_ context.Context, rec domain.RawRecord) ([]domain.FileStat, error) {
	if err := f.fetch(rec.ID, domain.KindDiffStat); err != nil {
		return nil, err
	}
	return f.FilesByID[rec.ID], nil
}

func (f *Fake) fetch(id int64, kind domain.SubresourceKind) error {
	f.Calls = append(f.Calls, fmt.Sprintf("%s:%d", kind, id))
	if f.OnFetch != nil {
		f.OnFetch(id, kind)
	}
	return f.Errs[kind]
}

// Seq adapts records to an iterator, counting how many were pulled.
func Seq(records []domain.RawRecord, pulled *int) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		for _, r := range records {
			if pulled != nil {
				*pulled++
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}
