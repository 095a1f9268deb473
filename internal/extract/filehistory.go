package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
	"github.com/crowdstack/ghextract/pkg/types"
)

// FileHistoryTask extracts the commit history of one file path across a set
// of repositories into one CSV per repository.
type FileHistoryTask struct {
	Client   *github.Client
	Org      string
	Repos    []string
	FilePath string
	SHA      string // optional branch or commit to start from
	Window   scope.Window
	OutDir   string
	Logger   *zap.Logger
}

func (t *FileHistoryTask) Name() string { return "file-history-extractor" }

// Run processes repositories serially. Per-repository failures are logged
// and skipped; only a rejected credential aborts the task.
func (t *FileHistoryTask) Run(ctx context.Context, emit *Emitter) error {
	emit.Logf("=== Filters ===")
	emit.Logf("  type:        commits (per-file)")
	emit.Logf("  org:         %s", t.Org)
	emit.Logf("  file_path:   %s", t.FilePath)
	if t.SHA != "" {
		emit.Logf("  sha:         %s", t.SHA)
	}
	emit.Logf("  date:        %s", t.Window)
	emit.Logf("===============")

	emit.Progress(1, "Listing commits...")

	for _, repo := range t.Repos {
		if err := t.extractRepo(ctx, repo, emit); err != nil {
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

func (t *FileHistoryTask) extractRepo(ctx context.Context, repo string, emit *Emitter) error {
	emit.Logf("[%s] listing commits touching %s...", repo, t.FilePath)

	commits, err := github.Collect(t.Client.ListCommitsForPath(ctx, t.Org, repo, github.CommitListOptions{
		Path:  t.FilePath,
		SHA:   t.SHA,
		Since: t.Window.Since,
		Until: t.Window.Until,
	}))
	if err != nil {
		return err
	}

	emit.Progress(10, fmt.Sprintf("%s: %d commits found", repo, len(commits)))

	type datedRow struct {
		date time.Time
		row  types.FileHistoryRow
	}
	var rows []datedRow
	total := len(commits)
	if total == 0 {
		total = 1
	}
	for i, c := range commits {
		sha := c.GetSHA()
		if sha == "" {
			continue
		}
		detail, err := t.Client.GetCommit(ctx, t.Org, repo, sha)
		if err != nil {
			return fmt.Errorf("failed to fetch commit %s: %w", sha, err)
		}
		if row, date, ok := t.rowFromCommit(repo, c, detail); ok {
			rows = append(rows, datedRow{date: date, row: row})
		}

		emit.Progress(10+80*(i+1)/total, fmt.Sprintf("%s: processing %d/%d", repo, i+1, total))
	}

	// Presentation contract: newest first. Retrieval order is whatever the
	// API returned, preserved for equal timestamps.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].date.After(rows[j].date)
	})

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.row.Record())
	}

	outPath := filepath.Join(t.OutDir, fmt.Sprintf("%s-%s-file-history.csv", repo, pathSuffix(t.FilePath)))
	if err := writeCSV(outPath, types.FileHistoryHeader(), records); err != nil {
		return err
	}
	emit.Output(outPath)
	emit.Logf("[%s] wrote %d rows", repo, len(records))
	return nil
}

// rowFromCommit builds one CSV row scoped to the target file within the
// commit. Commits whose file list does not touch the target path (directly
// or as a rename source) produce no row.
func (t *FileHistoryTask) rowFromCommit(repo string, summary, detail *gogithub.RepositoryCommit) (types.FileHistoryRow, time.Time, bool) {
	var fileRec *gogithub.CommitFile
	for _, f := range detail.Files {
		if f.GetFilename() == t.FilePath || f.GetPreviousFilename() == t.FilePath {
			fileRec = f
			break
		}
	}
	if fileRec == nil {
		return types.FileHistoryRow{}, time.Time{}, false
	}

	commitInfo := summary.GetCommit()
	authorInfo := commitInfo.GetAuthor()
	date := authorInfo.GetDate().Time

	row := types.FileHistoryRow{
		Repo:             repo,
		FilePath:         t.FilePath,
		CommitSHA:        summary.GetSHA(),
		HTMLURL:          summary.GetHTMLURL(),
		CommitURL:        fmt.Sprintf("https://github.com/%s/%s/commit/%s", t.Org, repo, summary.GetSHA()),
		CommitDate:       formatTime(&date),
		AuthorLogin:      summary.GetAuthor().GetLogin(),
		AuthorName:       authorInfo.GetName(),
		AuthorEmail:      authorInfo.GetEmail(),
		CommitterLogin:   summary.GetCommitter().GetLogin(),
		Message:          normalizeNewlines(commitInfo.GetMessage()),
		Status:           fileRec.GetStatus(),
		PreviousFilename: fileRec.GetPreviousFilename(),
		Additions:        fileRec.GetAdditions(),
		Deletions:        fileRec.GetDeletions(),
		Changes:          fileRec.GetChanges(),
	}
	return row, date, true
}
