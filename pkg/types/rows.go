package types

import "strconv"

// PRRow is one pull request in a per-repository extract. Column order is a
// fixed output contract: new columns may be appended, existing ones are
// never reordered.
type PRRow struct {
	Number         int
	Title          string
	State          string
	CreatedAt      string
	MergedAt       string
	Author         string
	MergeCommitSHA string
	CommitsCount   int
	ReviewsCount   int
	Description    string
	URL            string
}

// PRHeader returns the CSV header for pull request extracts.
func PRHeader() []string {
	return []string{
		"number", "title", "state", "created_at", "merged_at", "author",
		"merge_commit_sha", "commits_count", "reviews_count", "description", "url",
	}
}

// Record returns the row in CSV column order.
func (r PRRow) Record() []string {
	return []string{
		itoa(r.Number), r.Title, r.State, r.CreatedAt, r.MergedAt, r.Author,
		r.MergeCommitSHA, itoa(r.CommitsCount), itoa(r.ReviewsCount), r.Description, r.URL,
	}
}

// FileHistoryRow is one commit touching a target file in a per-repository
// extract. Same fixed-column contract as PRRow.
type FileHistoryRow struct {
	Repo             string
	FilePath         string
	CommitSHA        string
	HTMLURL          string
	CommitURL        string
	CommitDate       string
	AuthorLogin      string
	AuthorName       string
	AuthorEmail      string
	CommitterLogin   string
	Message          string
	Status           string
	PreviousFilename string
	Additions        int
	Deletions        int
	Changes          int
}

// FileHistoryHeader returns the CSV header for file history extracts.
func FileHistoryHeader() []string {
	return []string{
		"repo", "file_path", "commit_sha", "html_url", "commit_url", "commit_date",
		"author_login", "author_name", "author_email", "committer_login", "message",
		"status", "previous_filename", "additions", "deletions", "changes",
	}
}

// Record returns the row in CSV column order.
func (r FileHistoryRow) Record() []string {
	return []string{
		r.Repo, r.FilePath, r.CommitSHA, r.HTMLURL, r.CommitURL, r.CommitDate,
		r.AuthorLogin, r.AuthorName, r.AuthorEmail, r.CommitterLogin, r.Message,
		r.Status, r.PreviousFilename, itoa(r.Additions), itoa(r.Deletions), itoa(r.Changes),
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
