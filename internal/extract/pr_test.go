package extract

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
)

const pullsJSON = `[
  {"number":101,"title":"Add logging","state":"closed",
   "created_at":"2015-03-01T10:00:00Z","merged_at":"2015-03-02T10:00:00Z",
   "user":{"login":"alice"},"merge_commit_sha":"sha-101",
   "body":"first line\nsecond line","html_url":"https://github.com/testorg/svc/pull/101"},
  {"number":102,"title":"Fix race","state":"closed",
   "created_at":"2024-04-20T10:00:00Z","merged_at":"2024-05-01T10:00:00Z",
   "user":{"login":"bob"},"merge_commit_sha":"sha-102",
   "body":"","html_url":"https://github.com/testorg/svc/pull/102"},
  {"number":103,"title":"Abandoned","state":"closed",
   "created_at":"2024-05-10T10:00:00Z","merged_at":null,
   "user":{"login":"carol"},"merge_commit_sha":null,
   "body":"never merged","html_url":"https://github.com/testorg/svc/pull/103"}
]`

const searchJSON = `{"total_count":1,"incomplete_results":false,"items":[
  {"number":102,"title":"Fix race","state":"closed",
   "created_at":"2024-04-20T10:00:00Z","closed_at":"2024-05-01T10:00:00Z",
   "user":{"login":"bob"},"body":"","html_url":"https://github.com/testorg/svc/pull/102"}
]}`

// fakePRServer serves a minimal slice of the GitHub API for PR extraction.
type fakePRServer struct {
	srv        *httptest.Server
	listCalls  int
	searchCall int
}

func newFakePRServer(t *testing.T) *fakePRServer {
	t.Helper()
	f := &fakePRServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/repos/testorg/svc/pulls":
			f.listCalls++
			w.Write([]byte(pullsJSON))
		case r.URL.Path == "/search/issues":
			f.searchCall++
			w.Write([]byte(searchJSON))
		case strings.HasSuffix(r.URL.Path, "/commits"):
			w.Write([]byte(`[{"sha":"a"},{"sha":"b"}]`))
		case strings.HasSuffix(r.URL.Path, "/reviews"):
			w.Write([]byte(`[{"id":1}]`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePRServer) client(t *testing.T) *github.Client {
	t.Helper()
	c, err := github.NewClient("test-token", f.srv.URL+"/", false, zap.NewNop())
	require.NoError(t, err)
	return c
}

// drainRun executes a task while collecting its event stream.
func drainRun(t *testing.T, task Task) ([]Event, error) {
	t.Helper()
	events := make(chan Event, 256)
	var collected []Event
	done := make(chan struct{})
	go func() {
		for ev := range events {
			collected = append(collected, ev)
		}
		close(done)
	}()
	err := task.Run(context.Background(), NewEmitter(events))
	close(events)
	<-done
	return collected, err
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestPRTaskMergedOnlyAllTime(t *testing.T) {
	f := newFakePRServer(t)
	outDir := t.TempDir()

	task := &PRTask{
		Client:     f.client(t),
		Org:        "testorg",
		Repos:      []string{"svc"},
		MergedOnly: true,
		OutDir:     outDir,
		Logger:     zap.NewNop(),
	}

	events, err := drainRun(t, task)
	require.NoError(t, err)

	outPath := filepath.Join(outDir, "svc-pull-requests.csv")
	rows := readCSV(t, outPath)
	require.Len(t, rows, 3, "header plus the two merged PRs")
	assert.Equal(t, "number", rows[0][0])

	// All-time scope includes the 2015 PR; the unmerged one never appears.
	assert.Equal(t, "101", rows[1][0])
	assert.Equal(t, "102", rows[2][0])
	for _, row := range rows[1:] {
		assert.NotEqual(t, "103", row[0], "PRs without a merge timestamp must be excluded")
	}

	// Enrichment counts and newline normalization.
	assert.Equal(t, "2", rows[1][7], "commits_count")
	assert.Equal(t, "1", rows[1][8], "reviews_count")
	assert.Equal(t, "first line second line", rows[1][9])
	assert.Equal(t, "https://github.com/testorg/svc/pull/101", rows[1][10])

	// Output announced only after the file is complete.
	var announced []string
	finalPct := 0
	for _, ev := range events {
		switch e := ev.(type) {
		case OutputAnnounced:
			announced = append(announced, e.Path)
		case Progress:
			assert.GreaterOrEqual(t, e.Pct, finalPct, "progress must not decrease")
			finalPct = e.Pct
		}
	}
	assert.Equal(t, []string{outPath}, announced)
	assert.Equal(t, 100, finalPct)
}

func TestPRTaskKeepsUnmergedWhenRequested(t *testing.T) {
	f := newFakePRServer(t)
	outDir := t.TempDir()

	task := &PRTask{
		Client: f.client(t),
		Org:    "testorg",
		Repos:  []string{"svc"},
		OutDir: outDir,
		Logger: zap.NewNop(),
	}

	_, err := drainRun(t, task)
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(outDir, "svc-pull-requests.csv"))
	require.Len(t, rows, 4, "header plus all three PRs")
	assert.Equal(t, "103", rows[3][0])
	assert.Equal(t, "", rows[3][4], "merged_at stays empty for unmerged PRs")
}

func TestPRTaskWindowFiltersListPath(t *testing.T) {
	f := newFakePRServer(t)
	outDir := t.TempDir()

	window, err := scope.ParseWindow("2024-01-01", "")
	require.NoError(t, err)

	// A half-open window keeps the complete list path but filters by merge
	// timestamp client side.
	task := &PRTask{
		Client:     f.client(t),
		Org:        "testorg",
		Repos:      []string{"svc"},
		MergedOnly: true,
		Window:     window,
		OutDir:     outDir,
		Logger:     zap.NewNop(),
	}

	_, err = drainRun(t, task)
	require.NoError(t, err)

	assert.Equal(t, 1, f.listCalls)
	assert.Equal(t, 0, f.searchCall)

	rows := readCSV(t, filepath.Join(outDir, "svc-pull-requests.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "102", rows[1][0])
}

func TestPRTaskSearchPathForBoundedMergedWindow(t *testing.T) {
	f := newFakePRServer(t)
	outDir := t.TempDir()

	window, err := scope.ParseWindow("2024-01-01", "2024-12-31")
	require.NoError(t, err)

	task := &PRTask{
		Client:     f.client(t),
		Org:        "testorg",
		Repos:      []string{"svc"},
		MergedOnly: true,
		Window:     window,
		OutDir:     outDir,
		Logger:     zap.NewNop(),
	}

	_, err = drainRun(t, task)
	require.NoError(t, err)

	assert.Equal(t, 0, f.listCalls, "bounded merged-only windows take the search path")
	assert.Equal(t, 1, f.searchCall)

	rows := readCSV(t, filepath.Join(outDir, "svc-pull-requests.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "102", rows[1][0])
	assert.Equal(t, "closed", rows[1][2], "merged implies closed in search results")
	assert.Equal(t, "2024-05-01T10:00:00Z", rows[1][4], "close timestamp stands in for merge timestamp")
	assert.Equal(t, "", rows[1][6], "merge commit SHA is blank on the search path")
}

func TestPRTaskDeterministic(t *testing.T) {
	f := newFakePRServer(t)

	run := func() []byte {
		outDir := t.TempDir()
		task := &PRTask{
			Client:     f.client(t),
			Org:        "testorg",
			Repos:      []string{"svc"},
			MergedOnly: true,
			OutDir:     outDir,
			Logger:     zap.NewNop(),
		}
		_, err := drainRun(t, task)
		require.NoError(t, err)
		data, err := os.ReadFile(filepath.Join(outDir, "svc-pull-requests.csv"))
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, run(), run(), "identical responses must produce byte-identical CSVs")
}
