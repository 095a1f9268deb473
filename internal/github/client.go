// Package github wraps the GitHub REST API with deterministic pagination,
// client-side pacing, and quota-aware retry.
package github

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// paceRPS bounds outbound request rate below the quota ceiling. This is
// politeness pacing; quota exhaustion is handled separately by withRetry.
const paceRPS = 5

// Client wraps the GitHub API for extraction jobs.
type Client struct {
	api     *github.Client
	pacer   *rate.Limiter
	logger  *zap.Logger
	verbose bool
}

// CommitListOptions scopes a per-path commit enumeration.
type CommitListOptions struct {
	Path  string
	SHA   string
	Since *time.Time
	Until *time.Time
}

// NewClient creates a new GitHub client. The token is accepted as an opaque
// bearer credential; baseURL overrides the API endpoint (trailing slash
// added if missing) and is empty for api.github.com.
func NewClient(token, baseURL string, verbose bool, logger *zap.Logger) (*Client, error) {
	token = strings.Trim(strings.TrimSpace(token), `"'`)

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	api := github.NewClient(tc)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL: %w", err)
		}
		api.BaseURL = u
	}

	return &Client{
		api:     api,
		pacer:   rate.NewLimiter(rate.Limit(paceRPS), paceRPS),
		logger:  logger,
		verbose: verbose,
	}, nil
}

// ListPullRequests enumerates all pull requests of a repository in the given
// state, sorted by update time descending.
func (c *Client) ListPullRequests(ctx context.Context, org, repo, state string) iter.Seq2[*github.PullRequest, error] {
	return paginate(ctx, func(ctx context.Context, page int) ([]*github.PullRequest, error) {
		opts := &github.PullRequestListOptions{
			State:     state,
			Sort:      "updated",
			Direction: "desc",
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: pageSize,
			},
		}
		var prs []*github.PullRequest
		err := c.withRetry(ctx, fmt.Sprintf("list pulls %s/%s", org, repo), func() error {
			var err error
			prs, _, err = c.api.PullRequests.List(ctx, org, repo, opts)
			return err
		})
		return prs, err
	})
}

// SearchMergedPullRequests enumerates pull requests merged inside [since,
// until] via the search API. The search index caps results at a fixed
// ceiling; callers segment large windows, truncation is not detected here.
func (c *Client) SearchMergedPullRequests(ctx context.Context, org, repo string, since, until time.Time) iter.Seq2[*github.Issue, error] {
	query := fmt.Sprintf("repo:%s/%s is:pr is:merged merged:%s..%s",
		org, repo, since.Format("2006-01-02"), until.Format("2006-01-02"))

	return paginate(ctx, func(ctx context.Context, page int) ([]*github.Issue, error) {
		opts := &github.SearchOptions{
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: pageSize,
			},
		}
		var issues []*github.Issue
		err := c.withRetry(ctx, fmt.Sprintf("search merged pulls %s/%s", org, repo), func() error {
			result, _, err := c.api.Search.Issues(ctx, query, opts)
			if err != nil {
				return err
			}
			issues = result.Issues
			return nil
		})
		return issues, err
	})
}

// ListPullRequestCommits enumerates the commits of one pull request.
func (c *Client) ListPullRequestCommits(ctx context.Context, org, repo string, number int) iter.Seq2[*github.RepositoryCommit, error] {
	return paginate(ctx, func(ctx context.Context, page int) ([]*github.RepositoryCommit, error) {
		opts := &github.ListOptions{Page: page, PerPage: pageSize}
		var commits []*github.RepositoryCommit
		err := c.withRetry(ctx, fmt.Sprintf("list commits %s/%s#%d", org, repo, number), func() error {
			var err error
			commits, _, err = c.api.PullRequests.ListCommits(ctx, org, repo, number, opts)
			return err
		})
		return commits, err
	})
}

// ListPullRequestReviews enumerates the reviews of one pull request.
func (c *Client) ListPullRequestReviews(ctx context.Context, org, repo string, number int) iter.Seq2[*github.PullRequestReview, error] {
	return paginate(ctx, func(ctx context.Context, page int) ([]*github.PullRequestReview, error) {
		opts := &github.ListOptions{Page: page, PerPage: pageSize}
		var reviews []*github.PullRequestReview
		err := c.withRetry(ctx, fmt.Sprintf("list reviews %s/%s#%d", org, repo, number), func() error {
			var err error
			reviews, _, err = c.api.PullRequests.ListReviews(ctx, org, repo, number, opts)
			return err
		})
		return reviews, err
	})
}

// ListCommitsForPath enumerates commits touching a path, filtered server
// side, optionally bounded by branch/SHA and a date window.
func (c *Client) ListCommitsForPath(ctx context.Context, org, repo string, opts CommitListOptions) iter.Seq2[*github.RepositoryCommit, error] {
	return paginate(ctx, func(ctx context.Context, page int) ([]*github.RepositoryCommit, error) {
		listOpts := &github.CommitsListOptions{
			Path: opts.Path,
			SHA:  opts.SHA,
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: pageSize,
			},
		}
		if opts.Since != nil {
			listOpts.Since = *opts.Since
		}
		if opts.Until != nil {
			listOpts.Until = *opts.Until
		}
		var commits []*github.RepositoryCommit
		err := c.withRetry(ctx, fmt.Sprintf("list commits %s/%s path=%s", org, repo, opts.Path), func() error {
			var err error
			commits, _, err = c.api.Repositories.ListCommits(ctx, org, repo, listOpts)
			return err
		})
		return commits, err
	})
}

// GetCommit fetches full commit detail including per-file stats. The file
// list itself is paginated, so pages are walked and merged into one commit.
func (c *Client) GetCommit(ctx context.Context, org, repo, sha string) (*github.RepositoryCommit, error) {
	var commit *github.RepositoryCommit
	for page := 1; ; page++ {
		opts := &github.ListOptions{Page: page, PerPage: pageSize}
		var pageCommit *github.RepositoryCommit
		var resp *github.Response
		err := c.withRetry(ctx, fmt.Sprintf("get commit %s/%s@%s", org, repo, sha), func() error {
			var err error
			pageCommit, resp, err = c.api.Repositories.GetCommit(ctx, org, repo, sha, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		if commit == nil {
			commit = pageCommit
		} else {
			commit.Files = append(commit.Files, pageCommit.Files...)
		}
		if resp == nil || resp.NextPage == 0 {
			return commit, nil
		}
	}
}
