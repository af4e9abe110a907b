// Package github reads pull requests from the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v56/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/managedkaos/pull-request-analysis/internal/config"
	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/source"
)

const perPage = 100

// Client talks to one GitHub repository.
type Client struct {
	client *github.Client
	owner  string
	repo   string
	logger *zap.Logger
}

var _ source.Source = (*Client)(nil)

// New creates a client authenticated with a static OAuth token.
func New(ctx context.Context, cfg config.GitHubConfig, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	parts := strings.Split(cfg.Repository, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("repository name must be in format 'owner/repo'")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = timeout

	client := github.NewClient(tc)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API url: %w", err)
		}
	}

	return &Client{
		client: client,
		owner:  parts[0],
		repo:   parts[1],
		logger: logger,
	}, nil
}

// List pages through pull requests, most recently updated first. GitHub has
// no merged or declined filter, so both come back for either state and are
// told apart by their merge time.
func (c *Client) List(ctx context.Context, state domain.State) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		apiState, err := listState(state)
		if err != nil {
			yield(domain.RawRecord{}, err)
			return
		}

		opt := &github.PullRequestListOptions{
			State:     apiState,
			Sort:      "updated",
			Direction: "desc",
			ListOptions: github.ListOptions{
				PerPage: perPage,
			},
		}

		for {
			prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opt)
			if err != nil {
				yield(domain.RawRecord{}, fmt.Errorf("failed to fetch pull requests: %w", err))
				return
			}
			c.logger.Debug("fetched pull request page", zap.Int("page", opt.Page), zap.Int("count", len(prs)))

			for _, pr := range prs {
				if !yield(toRecord(pr), nil) {
					return
				}
			}

			if resp.NextPage == 0 {
				return
			}
			opt.Page = resp.NextPage
		}
	}
}

func (c *Client) Get(ctx context.Context, id int64) (domain.RawRecord, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, int(id))
	if err != nil {
		if isNotFound(err) {
			return domain.RawRecord{}, fmt.Errorf("pull request #%d: %w", id, source.ErrNotFound)
		}
		return domain.RawRecord{}, fmt.Errorf("failed to fetch pull request #%d: %w", id, err)
	}
	return toRecord(pr), nil
}

// Participants combines requested reviewers with everyone who submitted a review.
func (c *Client) Participants(ctx context.Context, rec domain.RawRecord) ([]domain.Participant, error) {
	number := int(rec.ID)

	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}

	reviews, err := listAll(func(opt github.ListOptions) ([]*github.PullRequestReview, *github.Response, error) {
		return c.client.PullRequests.ListReviews(ctx, c.owner, c.repo, number, &opt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	seen := make(map[string]int)
	var participants []domain.Participant
	add := func(login string, approved bool) {
		if login == "" {
			return
		}
		if i, ok := seen[login]; ok {
			participants[i].Approved = participants[i].Approved || approved
			return
		}
		seen[login] = len(participants)
		participants = append(participants, domain.Participant{Name: login, Role: domain.RoleReviewer, Approved: approved})
	}

	for _, u := range pr.RequestedReviewers {
		add(u.GetLogin(), false)
	}
	for _, r := range reviews {
		add(r.GetUser().GetLogin(), r.GetState() == "APPROVED")
	}
	return participants, nil
}

func (c *Client) Commits(ctx context.Context, rec domain.RawRecord) ([]domain.Commit, error) {
	commits, err := listAll(func(opt github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return c.client.PullRequests.ListCommits(ctx, c.owner, c.repo, int(rec.ID), &opt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get commits: %w", err)
	}

	out := make([]domain.Commit, 0, len(commits))
	for _, cm := range commits {
		out = append(out, domain.Commit{Hash: cm.GetSHA(), Author: cm.GetAuthor().GetLogin()})
	}
	return out, nil
}

// Comments counts both conversation comments and inline review comments.
func (c *Client) Comments(ctx context.Context, rec domain.RawRecord) ([]domain.Comment, error) {
	number := int(rec.ID)

	issueComments, err := listAll(func(opt github.ListOptions) ([]*github.IssueComment, *github.Response, error) {
		return c.client.Issues.ListComments(ctx, c.owner, c.repo, number, &github.IssueListCommentsOptions{ListOptions: opt})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get issue comments: %w", err)
	}

	reviewComments, err := listAll(func(opt github.ListOptions) ([]*github.PullRequestComment, *github.Response, error) {
		return c.client.PullRequests.ListComments(ctx, c.owner, c.repo, number, &github.PullRequestListCommentsOptions{ListOptions: opt})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get review comments: %w", err)
	}

	out := make([]domain.Comment, 0, len(issueComments)+len(reviewComments))
	for _, cm := range issueComments {
		out = append(out, domain.Comment{ID: cm.GetID(), Author: cm.GetUser().GetLogin()})
	}
	for _, cm := range reviewComments {
		out = append(out, domain.Comment{ID: cm.GetID(), Author: cm.GetUser().GetLogin()})
	}
	return out, nil
}

func (c *Client) DiffStat(ctx context.Context, rec domain.RawRecord) ([]domain.FileStat, error) {
	files, err := listAll(func(opt github.ListOptions) ([]*github.CommitFile, *github.Response, error) {
		return c.client.PullRequests.ListFiles(ctx, c.owner, c.repo, int(rec.ID), &opt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get files: %w", err)
	}

	out := make([]domain.FileStat, 0, len(files))
	for _, f := range files {
		out = append(out, domain.FileStat{
			Path:         f.GetFilename(),
			LinesAdded:   f.GetAdditions(),
			LinesRemoved: f.GetDeletions(),
		})
	}
	return out, nil
}

func listState(state domain.State) (string, error) {
	switch state {
	case domain.StateOpen:
		return "open", nil
	case domain.StateMerged, domain.StateDeclined:
		return "closed", nil
	default:
		return "", fmt.Errorf("state %s: %w", state, source.ErrUnsupported)
	}
}

func toRecord(pr *github.PullRequest) domain.RawRecord {
	rec := domain.RawRecord{
		ID:                int64(pr.GetNumber()),
		Title:             pr.GetTitle(),
		Author:            pr.GetUser().GetLogin(),
		CreatedAt:         pr.GetCreatedAt().Time,
		UpdatedAt:         timePtr(pr.GetUpdatedAt().Time),
		SourceBranch:      pr.GetHead().GetRef(),
		DestinationBranch: pr.GetBase().GetRef(),
	}

	switch {
	case pr.GetState() == "open":
		rec.State = domain.StateOpen
	case pr.MergedAt != nil:
		rec.State = domain.StateMerged
		rec.ResolvedAt = timePtr(pr.GetMergedAt().Time)
	default:
		rec.State = domain.StateDeclined
		rec.ResolvedAt = timePtr(pr.GetClosedAt().Time)
	}
	return rec
}

func listAll[T any](fetch func(opt github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {
	opt := github.ListOptions{PerPage: perPage}
	var all []T
	for {
		items, resp, err := fetch(opt)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opt.Page = resp.NextPage
	}
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
