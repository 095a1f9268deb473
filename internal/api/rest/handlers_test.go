package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/audit"
	"github.com/crowdstack/ghextract/internal/extract"
	"github.com/crowdstack/ghextract/internal/jobs"
)

var errStub = errors.New("stub task failed")

// stubTask writes one file into its job directory and announces it.
type stubTask struct {
	outDir string
	fail   bool
}

func (s *stubTask) Name() string { return "stub" }

func (s *stubTask) Run(_ context.Context, emit *extract.Emitter) error {
	if s.fail {
		emit.Logf("credential rejected by upstream")
		return errStub
	}
	path := filepath.Join(s.outDir, "svc-pull-requests.csv")
	if err := os.WriteFile(path, []byte("number,title\n1,hello\n"), 0o644); err != nil {
		return err
	}
	emit.Output(path)
	emit.Progress(100, "Completed")
	return nil
}

type testServer struct {
	srv      *httptest.Server
	auditLog *audit.Logger
	fail     bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.auditLog = audit.NewLogger(filepath.Join(t.TempDir(), "audit-log.jsonl"), zap.NewNop())

	factory := func(_ jobs.Tool, _ map[string]string, _, outDir string) (extract.Task, error) {
		return &stubTask{outDir: outDir, fail: ts.fail}, nil
	}
	registry := jobs.NewRegistry(t.TempDir(), factory, ts.auditLog, zap.NewNop())
	handler := NewHandler(registry, ts.auditLog, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1", handler.RegisterRoutes)
	ts.srv = httptest.NewServer(r)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) post(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/api/v1/extract", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + "/api/v1" + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	return body
}

func (ts *testServer) waitTerminal(t *testing.T, id string) map[string]any {
	t.Helper()
	var body map[string]any
	require.Eventually(t, func() bool {
		var resp *http.Response
		resp, body = ts.get(t, "/status/"+id)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		status := body["status"].(string)
		return status == "succeeded" || status == "failed"
	}, 5*time.Second, 10*time.Millisecond)
	return body
}

func TestStartExtractionRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown type", `{"type":"mystery","token":"tok","args":{"org":"o","repos":"r"}}`},
		{"missing token", `{"type":"pr-extractor","args":{"org":"o","repos":"r"}}`},
		{"missing org", `{"type":"pr-extractor","token":"tok","args":{"repos":"r"}}`},
		{"file history without path", `{"type":"file-history-extractor","token":"tok","args":{"org":"o","repos":"r"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.post(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestExtractionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, `{"type":"pr-extractor","token":"ghp_ABCDEFGHIJKLMNOP",
		"args":{"org":"testorg","repos":"svc","merged_only":true}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, _ := body["job_id"].(string)
	require.NotEmpty(t, id)

	status := ts.waitTerminal(t, id)
	assert.Equal(t, "succeeded", status["status"])
	assert.EqualValues(t, 100, status["progress"])

	resp, body = ts.get(t, "/outputs/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outputs, ok := body["outputs"].([]any)
	require.True(t, ok)
	require.Len(t, outputs, 1)
	filename := outputs[0].(string)
	assert.Equal(t, "svc-pull-requests.csv", filename)

	dlResp, err := http.Get(ts.srv.URL + "/api/v1/download/" + id + "/" + filename)
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	assert.Contains(t, dlResp.Header.Get("Content-Disposition"), filename)
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(dlResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "number,title\n1,hello\n", buf.String())

	// The audit tail covers both lifecycle records, credential masked.
	auditResp, err := http.Get(ts.srv.URL + "/api/v1/audit")
	require.NoError(t, err)
	defer auditResp.Body.Close()
	require.Equal(t, http.StatusOK, auditResp.StatusCode)
	var entries []audit.Entry
	require.NoError(t, json.NewDecoder(auditResp.Body).Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "started", entries[0].Status)
	assert.Equal(t, "succeeded", entries[1].Status)
	for _, e := range entries {
		assert.Equal(t, "ghp_********MNOP", e.TokenMasked)
	}
}

func TestFailedJobReportsLastLogLine(t *testing.T) {
	ts := newTestServer(t)
	ts.fail = true

	resp, body := ts.post(t, `{"type":"pr-extractor","token":"tok","args":{"org":"o","repos":"r"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := body["job_id"].(string)

	status := ts.waitTerminal(t, id)
	assert.Equal(t, "failed", status["status"])
	assert.Contains(t, status["message"], "stub task failed")
}

func TestStatusUnknownJob(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.get(t, "/status/no-such-id")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.get(t, "/outputs/no-such-id")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadRejectsTraversal(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.post(t, `{"type":"pr-extractor","token":"tok","args":{"org":"o","repos":"r"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := body["job_id"].(string)
	ts.waitTerminal(t, id)

	dlResp, err := http.Get(ts.srv.URL + "/api/v1/download/" + id + "/..%2F..%2Fetc%2Fpasswd")
	require.NoError(t, err)
	defer dlResp.Body.Close()
	assert.NotEqual(t, http.StatusOK, dlResp.StatusCode)
}

func TestAuditEmptyLog(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/audit")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []audit.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.Empty(t, entries)
}
