package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v56/github"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/managedkaos/pull-request-analysis/internal/config"
	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gc := github.NewClient(nil)
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gc.BaseURL = u

	return &Client{client: gc, owner: "o", repo: "r", logger: zap.NewNop()}, srv
}

func TestNewValidatesRepository(t *testing.T) {
	_, err := New(context.Background(), config.GitHubConfig{Token: "t", Repository: "bad"}, time.Second, zap.NewNop())
	require.Error(t, err)

	c, err := New(context.Background(), config.GitHubConfig{Token: "t", Repository: "o/r"}, time.Second, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "o", c.owner)
	require.Equal(t, "r", c.repo)
}

func TestListMapsClosedToMergedAndDeclined(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "closed", r.URL.Query().Get("state"))
		require.Equal(t, "updated", r.URL.Query().Get("sort"))
		require.Equal(t, "desc", r.URL.Query().Get("direction"))
		fmt.Fprint(w, `[
			{"number": 3, "title": "merged", "state": "closed", "user": {"login": "a"},
			 "created_at": "2024-01-01T10:00:00Z", "merged_at": "2024-01-02T10:00:00Z", "closed_at": "2024-01-02T10:00:00Z",
			 "head": {"ref": "feat"}, "base": {"ref": "main"}},
			{"number": 2, "title": "declined", "state": "closed", "user": {"login": "b"},
			 "created_at": "2024-01-01T09:00:00Z", "closed_at": "2024-01-03T09:00:00Z"}
		]`)
	})
	c, _ := newTestClient(t, mux)

	var got []domain.RawRecord
	for rec, err := range c.List(context.Background(), domain.StateMerged) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 2)

	merged := got[0]
	require.Equal(t, int64(3), merged.ID)
	require.Equal(t, domain.StateMerged, merged.State)
	require.Equal(t, "feat", merged.SourceBranch)
	require.Equal(t, "main", merged.DestinationBranch)
	require.NotNil(t, merged.ResolvedAt)
	require.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), merged.ResolvedAt.UTC())

	declined := got[1]
	require.Equal(t, int64(2), declined.ID)
	require.Equal(t, domain.StateDeclined, declined.State)
	require.NotNil(t, declined.ResolvedAt)
	require.Equal(t, time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), declined.ResolvedAt.UTC())
}

func TestListFollowsLinkHeader(t *testing.T) {
	var srvURL string
	pages := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		pages++
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/o/r/pulls?state=open&page=2>; rel="next"`, srvURL))
			fmt.Fprint(w, `[{"number": 2, "state": "open", "created_at": "2024-01-01T10:00:00Z"}]`)
			return
		}
		fmt.Fprint(w, `[{"number": 1, "state": "open", "created_at": "2024-01-01T09:00:00Z"}]`)
	})
	c, srv := newTestClient(t, mux)
	srvURL = srv.URL

	var ids []int64
	for rec, err := range c.List(context.Background(), domain.StateOpen) {
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	require.Equal(t, []int64{2, 1}, ids)
	require.Equal(t, 2, pages)
}

func TestListSupersededUnsupported(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	for _, err := range c.List(context.Background(), domain.StateSuperseded) {
		require.True(t, errors.Is(err, source.ErrUnsupported))
	}
}

func TestGetNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	_, err := c.Get(context.Background(), 99)
	require.True(t, errors.Is(err, source.ErrNotFound))
}

func TestSubresources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number": 5, "state": "open", "user": {"login": "author"},
			"requested_reviewers": [{"login": "r1"}, {"login": "r2"}]}`)
	})
	mux.HandleFunc("/repos/o/r/pulls/5/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"user": {"login": "r1"}, "state": "APPROVED"}, {"user": {"login": "r3"}, "state": "COMMENTED"}]`)
	})
	mux.HandleFunc("/repos/o/r/pulls/5/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"sha": "a"}, {"sha": "b"}]`)
	})
	mux.HandleFunc("/repos/o/r/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1}]`)
	})
	mux.HandleFunc("/repos/o/r/pulls/5/comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 2}, {"id": 3}]`)
	})
	mux.HandleFunc("/repos/o/r/pulls/5/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"filename": "a.go", "additions": 4, "deletions": 1}, {"filename": "b.go", "additions": 0, "deletions": 7}]`)
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()
	rec := domain.RawRecord{ID: 5}

	participants, err := c.Participants(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, []domain.Participant{
		{Name: "r1", Role: domain.RoleReviewer, Approved: true},
		{Name: "r2", Role: domain.RoleReviewer},
		{Name: "r3", Role: domain.RoleReviewer},
	}, participants)

	commits, err := c.Commits(ctx, rec)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	comments, err := c.Comments(ctx, rec)
	require.NoError(t, err)
	require.Len(t, comments, 3)

	files, err := c.DiffStat(ctx, rec)
	require.NoError(t, err)
	require.Equal(t, []domain.FileStat{
		{Path: "a.go", LinesAdded: 4, LinesRemoved: 1},
		{Path: "b.go", LinesAdded: 0, LinesRemoved: 7},
	}, files)
}
