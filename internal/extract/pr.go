package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
	"github.com/crowdstack/ghextract/pkg/types"
)

// PRTask extracts pull requests for a set of repositories into one CSV per
// repository.
type PRTask struct {
	Client     *github.Client
	Org        string
	Repos      []string
	State      string // open, closed or all; defaults to closed
	MergedOnly bool
	Window     scope.Window
	OutDir     string
	Logger     *zap.Logger
}

// prRecord is a pull request normalized across the list and search paths.
type prRecord struct {
	number    int
	title     string
	state     string
	createdAt *time.Time
	mergedAt  *time.Time
	author    string
	mergeSHA  string
	body      string
	url       string
}

func (t *PRTask) Name() string { return "pr-extractor" }

// Run processes repositories serially. A failure inside one repository is
// logged and skipped; only a rejected credential aborts the whole task.
func (t *PRTask) Run(ctx context.Context, emit *Emitter) error {
	state := t.State
	if state == "" {
		state = "closed"
	}
	path := scope.Plan(t.MergedOnly, t.Window)

	emit.Logf("=== Filters ===")
	emit.Logf("  type:       is:pr")
	emit.Logf("  state:      %s", state)
	emit.Logf("  is:merged:  %t", t.MergedOnly)
	emit.Logf("  merged_at:  %s", t.Window)
	emit.Logf("  path:       %s", path)
	emit.Logf("===============")

	for _, repo := range t.Repos {
		if err := t.extractRepo(ctx, repo, state, path, emit); err != nil {
			if errors.Is(err, github.ErrUnauthorized) {
				return err
			}
			emit.Logf("[%s] extraction failed: %v", repo, err)
			t.Logger.Error("repository extraction failed",
				zap.String("repo", repo),
				zap.Error(err),
			)
		}
	}

	emit.Progress(100, "Completed")
	return nil
}

func (t *PRTask) extractRepo(ctx context.Context, repo, state string, path scope.Path, emit *Emitter) error {
	emit.Logf("[%s] fetching PRs...", repo)

	var records []prRecord
	var err error
	if path == scope.SearchPath {
		records, err = t.searchMerged(ctx, repo, emit)
	} else {
		records, err = t.listAndFilter(ctx, repo, state)
	}
	if err != nil {
		return err
	}

	emit.Progress(5, fmt.Sprintf("%s: %d PRs to process", repo, len(records)))

	rows := make([][]string, 0, len(records))
	total := len(records)
	if total == 0 {
		total = 1
	}
	for i, rec := range records {
		commits, err := github.Count(t.Client.ListPullRequestCommits(ctx, t.Org, repo, rec.number))
		if err != nil {
			return fmt.Errorf("failed to count commits for #%d: %w", rec.number, err)
		}
		reviews, err := github.Count(t.Client.ListPullRequestReviews(ctx, t.Org, repo, rec.number))
		if err != nil {
			return fmt.Errorf("failed to count reviews for #%d: %w", rec.number, err)
		}

		row := types.PRRow{
			Number:         rec.number,
			Title:          rec.title,
			State:          rec.state,
			CreatedAt:      formatTime(rec.createdAt),
			MergedAt:       formatTime(rec.mergedAt),
			Author:         rec.author,
			MergeCommitSHA: rec.mergeSHA,
			CommitsCount:   commits,
			ReviewsCount:   reviews,
			Description:    normalizeNewlines(rec.body),
			URL:            rec.url,
		}
		rows = append(rows, row.Record())

		emit.Progress(5+90*(i+1)/total, fmt.Sprintf("%s: processing %d/%d", repo, i+1, total))
	}

	outPath := filepath.Join(t.OutDir, repo+"-pull-requests.csv")
	if err := writeCSV(outPath, types.PRHeader(), rows); err != nil {
		return err
	}
	emit.Output(outPath)
	emit.Logf("[%s] wrote %d rows", repo, len(rows))
	return nil
}

// listAndFilter is the always-complete path: full enumeration, then client
// side filters.
func (t *PRTask) listAndFilter(ctx context.Context, repo, state string) ([]prRecord, error) {
	prs, err := github.Collect(t.Client.ListPullRequests(ctx, t.Org, repo, state))
	if err != nil {
		return nil, err
	}

	var records []prRecord
	for _, pr := range prs {
		var mergedAt *time.Time
		if pr.MergedAt != nil {
			tm := pr.MergedAt.Time
			mergedAt = &tm
		}
		if t.MergedOnly && mergedAt == nil {
			continue
		}
		if !t.Window.IsAllTime() {
			// The window constrains the merge timestamp, so unmerged PRs
			// cannot match a bounded request.
			if mergedAt == nil || !t.Window.Contains(*mergedAt) {
				continue
			}
		}
		var createdAt *time.Time
		if pr.CreatedAt != nil {
			tm := pr.CreatedAt.Time
			createdAt = &tm
		}
		records = append(records, prRecord{
			number:    pr.GetNumber(),
			title:     pr.GetTitle(),
			state:     pr.GetState(),
			createdAt: createdAt,
			mergedAt:  mergedAt,
			author:    pr.GetUser().GetLogin(),
			mergeSHA:  pr.GetMergeCommitSHA(),
			body:      pr.GetBody(),
			url:       pr.GetHTMLURL(),
		})
	}
	return records, nil
}

// searchMerged is the pre-filtered path. Search results lack some PR-only
// fields: merged implies closed, the close timestamp stands in for the merge
// timestamp, and the merge commit SHA is left blank.
func (t *PRTask) searchMerged(ctx context.Context, repo string, emit *Emitter) ([]prRecord, error) {
	issues, err := github.Collect(t.Client.SearchMergedPullRequests(ctx, t.Org, repo, *t.Window.Since, *t.Window.Until))
	if err != nil {
		return nil, err
	}
	if len(issues) >= scope.SearchResultCeiling {
		emit.Logf("[%s] search returned %d results, the index cap; the window is likely truncated, consider segmenting it", repo, len(issues))
		t.Logger.Warn("search result ceiling reached",
			zap.String("repo", repo),
			zap.Int("results", len(issues)),
		)
	}

	records := make([]prRecord, 0, len(issues))
	for _, is := range issues {
		var createdAt, mergedAt *time.Time
		if is.CreatedAt != nil {
			tm := is.CreatedAt.Time
			createdAt = &tm
		}
		if is.ClosedAt != nil {
			tm := is.ClosedAt.Time
			mergedAt = &tm
		}
		records = append(records, prRecord{
			number:    is.GetNumber(),
			title:     is.GetTitle(),
			state:     "closed",
			createdAt: createdAt,
			mergedAt:  mergedAt,
			author:    is.GetUser().GetLogin(),
			body:      is.GetBody(),
			url:       is.GetHTMLURL(),
		})
	}
	return records, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
