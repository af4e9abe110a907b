package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidState is returned when a state name is not one the service knows.
var ErrInvalidState = errors.New("invalid pull request state")

// State is the lifecycle state of a pull request as reported by the service.
type State string

const (
	StateOpen       State = "OPEN"
	StateMerged     State = "MERGED"
	StateDeclined   State = "DECLINED"
	StateSuperseded State = "SUPERSEDED"
)

// AllStates lists the states accepted on the command line.
var AllStates = []State{StateMerged, StateOpen, StateDeclined, StateSuperseded}

// ParseState converts a case-insensitive state name into a State.
func ParseState(s string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStates {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// Terminal reports whether the state represents a finished pull request.
func (s State) Terminal() bool {
	return s == StateMerged || s == StateDeclined || s == StateSuperseded
}

func (s State) String() string {
	return string(s)
}

// SubresourceKind names one of the per-record collections fetched after listing.
type SubresourceKind string

const (
	KindParticipants SubresourceKind = "participants"
	KindCommits      SubresourceKind = "commits"
	KindComments     SubresourceKind = "comments"
	KindDiffStat     SubresourceKind = "diffstat"
)

// RawRecord is a pull request as returned by a record source.
type RawRecord struct {
	ID     int64
	Title  string
	Author string
	State  State

	// CreatedAt is zero when the service omitted it or sent a malformed value.
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	ResolvedAt *time.Time

	SourceBranch      string
	DestinationBranch string

	Links map[SubresourceKind]string

	// Participants is non-nil when the service sent them with the record.
	Participants []Participant
}

// HasIdentity reports whether the listing carried every identity field,
// so a detail fetch is not needed to describe the record.
func (r RawRecord) HasIdentity() bool {
	return r.ID != 0 && r.Title != "" && r.Author != "" && !r.CreatedAt.IsZero()
}

// Participant is a user attached to a pull request.
type Participant struct {
	Name     string
	Role     string
	Approved bool
}

// RoleReviewer marks a participant that was asked to review.
const RoleReviewer = "REVIEWER"

// Commit is a single commit on a pull request branch.
type Commit struct {
	Hash   string
	Author string
}

// Comment is a single comment left on a pull request.
type Comment struct {
	ID     int64
	Author string
}

// FileStat holds line counts for one changed file.
type FileStat struct {
	Path         string
	LinesAdded   int
	LinesRemoved int
}
