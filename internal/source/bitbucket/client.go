// Package bitbucket reads pull requests from the Bitbucket Cloud REST API 2.0.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/managedkaos/pull-request-analysis/internal/config"
	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/logging"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

const pageLen = 50

// Client talks to one Bitbucket repository.
type Client struct {
	baseURL   string
	workspace string
	repo      string
	username  string
	token     string
	http      *http.Client
	logger    *zap.Logger
}

var _ source.Source = (*Client)(nil)

// New creates a client. With a username the token is sent as an app password
// over basic auth, otherwise it is used as an OAuth bearer token.
func New(ctx context.Context, cfg config.BitbucketConfig, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: timeout}
	if cfg.Username == "" && cfg.APIToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = timeout
	}

	return &Client{
		baseURL:   cfg.URL,
		workspace: cfg.Workspace,
		repo:      cfg.Repo,
		username:  cfg.Username,
		token:     cfg.APIToken,
		http:      httpClient,
		logger:    logger,
	}
}

// List pages through pull requests in the given state, most recently
// updated first.
func (c *Client) List(ctx context.Context, state domain.State) iter.Seq2[domain.RawRecord, error] {
	q := url.Values{}
	q.Set("state", state.String())
	q.Set("pagelen", strconv.Itoa(pageLen))
	q.Set("sort", "-updated_on")
	first := c.repoURL("pullrequests") + "?" + q.Encode()

	return func(yield func(domain.RawRecord, error) bool) {
		for pr, err := range paged[pullRequest](ctx, c, first) {
			if err != nil {
				yield(domain.RawRecord{}, fmt.Errorf("failed to fetch pull requests: %w", err))
				return
			}
			if !yield(c.toRecord(pr), nil) {
				return
			}
		}
	}
}

// Get fetches a single pull request by id.
func (c *Client) Get(ctx context.Context, id int64) (domain.RawRecord, error) {
	var pr pullRequest
	if err := c.getJSON(ctx, c.pullRequestURL(id), &pr); err != nil {
		return domain.RawRecord{}, fmt.Errorf("failed to fetch pull request #%d: %w", id, err)
	}
	return c.toRecord(pr), nil
}

// Participants reads the participant list from the pull request detail,
// unless rec already came from a detail response.
func (c *Client) Participants(ctx context.Context, rec domain.RawRecord) ([]domain.Participant, error) {
	if rec.Participants != nil {
		return rec.Participants, nil
	}

	var pr pullRequest
	if err := c.getJSON(ctx, c.pullRequestURL(rec.ID), &pr); err != nil {
		return nil, err
	}
	return toParticipants(pr.Participants), nil
}

func toParticipants(in []participant) []domain.Participant {
	out := make([]domain.Participant, 0, len(in))
	for _, p := range in {
		out = append(out, domain.Participant{
			Name:     p.User.name(),
			Role:     p.Role,
			Approved: p.Approved,
		})
	}
	return out
}

func (c *Client) Commits(ctx context.Context, rec domain.RawRecord) ([]domain.Commit, error) {
	values, err := collect[commit](ctx, c, c.subresourceURL(rec, domain.KindCommits))
	if err != nil {
		return nil, err
	}

	commits := make([]domain.Commit, 0, len(values))
	for _, v := range values {
		author := v.Author.User.name()
		if author == "" {
			author = v.Author.Raw
		}
		commits = append(commits, domain.Commit{Hash: v.Hash, Author: author})
	}
	return commits, nil
}

func (c *Client) Comments(ctx context.Context, rec domain.RawRecord) ([]domain.Comment, error) {
	values, err := collect[comment](ctx, c, c.subresourceURL(rec, domain.KindComments))
	if err != nil {
		return nil, err
	}

	comments := make([]domain.Comment, 0, len(values))
	for _, v := range values {
		comments = append(comments, domain.Comment{ID: v.ID, Author: v.User.name()})
	}
	return comments, nil
}

// DiffStat returns per-file line counts. A negative count means the
// response was truncated or malformed and is reported as an error.
func (c *Client) DiffStat(ctx context.Context, rec domain.RawRecord) ([]domain.FileStat, error) {
	values, err := collect[diffStat](ctx, c, c.subresourceURL(rec, domain.KindDiffStat))
	if err != nil {
		return nil, err
	}

	files := make([]domain.FileStat, 0, len(values))
	for _, v := range values {
		if v.LinesAdded < 0 || v.LinesRemoved < 0 {
			return nil, fmt.Errorf("invalid diffstat entry for %q", v.path())
		}
		files = append(files, domain.FileStat{
			Path:         v.path(),
			LinesAdded:   v.LinesAdded,
			LinesRemoved: v.LinesRemoved,
		})
	}
	return files, nil
}

func (c *Client) repoURL(suffix string) string {
	return fmt.Sprintf("%s/repositories/%s/%s/%s",
		c.baseURL, url.PathEscape(c.workspace), url.PathEscape(c.repo), suffix)
}

func (c *Client) pullRequestURL(id int64) string {
	return c.repoURL("pullrequests/" + strconv.FormatInt(id, 10))
}

// subresourceURL prefers the link the service returned with the record.
func (c *Client) subresourceURL(rec domain.RawRecord, kind domain.SubresourceKind) string {
	if href := rec.Links[kind]; href != "" {
		return href
	}
	return c.pullRequestURL(rec.ID) + "/" + string(kind)
}

// paged yields every value across pages, requesting the next page only
// when the consumer asks for more.
func paged[T any](ctx context.Context, c *Client, first string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		next := first
		for next != "" {
			var p page[T]
			if err := c.getJSON(ctx, next, &p); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, v := range p.Values {
				if !yield(v, nil) {
					return
				}
			}
			next = p.Next
		}
	}
}

func collect[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var out []T
	for v, err := range paged[T](ctx, c, first) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.token)
	}

	c.logger.Debug("bitbucket request", zap.String("url", rawURL))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return source.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, rawURL, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) toRecord(pr pullRequest) domain.RawRecord {
	rec := domain.RawRecord{
		ID:                pr.ID,
		Title:             pr.Title,
		Author:            pr.Author.name(),
		State:             domain.State(pr.State),
		SourceBranch:      pr.Source.Branch.Name,
		DestinationBranch: pr.Destination.Branch.Name,
		Links:             make(map[domain.SubresourceKind]string),
	}
	if pr.Participants != nil {
		rec.Participants = toParticipants(pr.Participants)
	}

	if created, ok := c.parseTime(pr.ID, "created_on", pr.CreatedOn); ok {
		rec.CreatedAt = created
	}
	if updated, ok := c.parseTime(pr.ID, "updated_on", pr.UpdatedOn); ok {
		rec.UpdatedAt = &updated
		// Bitbucket has no dedicated merge timestamp; the last update of a
		// finished pull request is its resolution.
		if rec.State.Terminal() {
			rec.ResolvedAt = &updated
		}
	}

	for kind, l := range map[domain.SubresourceKind]link{
		domain.KindCommits:  pr.Links.Commits,
		domain.KindComments: pr.Links.Comments,
		domain.KindDiffStat: pr.Links.DiffStat,
	} {
		if l.Href != "" {
			rec.Links[kind] = l.Href
		}
	}
	return rec
}

func (c *Client) parseTime(id int64, field, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		c.logger.Warn("invalid timestamp",
			logging.PR(id), zap.String("field", field), zap.String("value", value), zap.Error(err))
		return time.Time{}, false
	}
	return t, true
}
