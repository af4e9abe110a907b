package source

import (
	"context"
	"errors"
	"iter"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
)

var (
	// ErrNotFound is returned when a single record does not exist.
	ErrNotFound = errors.New("pull request not found")
	// ErrUnsupported is returned when a provider cannot serve a request.
	ErrUnsupported = errors.New("not supported by provider")
)

// Source is the remote service the pipeline reads pull requests from.
type Source interface {
	// List yields pull requests most recently updated first, one page at a
	// time. Stopping the iteration stops further page requests. Records of
	// other states may be yielded when the service cannot filter exactly.
	List(ctx context.Context, state domain.State) iter.Seq2[domain.RawRecord, error]
	Get(ctx context.Context, id int64) (domain.RawRecord, error)

	Participants(ctx context.Context, rec domain.RawRecord) ([]domain.Participant, error)
	Commits(ctx context.Context, rec domain.RawRecord) ([]domain.Commit, error)
	Comments(ctx context.Context, rec domain.RawRecord) ([]domain.Comment, error)
	DiffStat(ctx context.Context, rec domain.RawRecord) ([]domain.FileStat, error)
}
