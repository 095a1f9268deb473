package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/audit"
	"github.com/crowdstack/ghextract/internal/extract"
)

// TaskFactory builds the extraction task for a validated submission. It runs
// before the worker starts, so argument errors it returns still reject the
// submission with no job registered.
type TaskFactory func(tool Tool, args map[string]string, credential, outDir string) (extract.Task, error)

// Registry accepts task submissions, runs each as an isolated worker, and
// serves point-in-time status snapshots. There is no bound on concurrent
// jobs and no cancellation path.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	outRoot string
	factory TaskFactory
	audit   *audit.Logger
	logger  *zap.Logger
}

// NewRegistry creates a registry writing job outputs under outRoot.
func NewRegistry(outRoot string, factory TaskFactory, auditLog *audit.Logger, logger *zap.Logger) *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		outRoot: outRoot,
		factory: factory,
		audit:   auditLog,
		logger:  logger,
	}
}

// Submit validates the request, registers a new job, and starts its worker.
// Validation failures reject the submission before any worker starts.
func (r *Registry) Submit(tool Tool, args map[string]string, credential string) (string, error) {
	if _, err := ParseTool(string(tool)); err != nil {
		return "", err
	}
	if strings.TrimSpace(credential) == "" {
		return "", &ValidationError{Field: "token", Reason: "credential is required"}
	}
	if strings.TrimSpace(args["org"]) == "" {
		return "", &ValidationError{Field: "org", Reason: "organization is required"}
	}
	if len(SplitRepos(args["repos"])) == 0 {
		return "", &ValidationError{Field: "repos", Reason: "at least one repository is required"}
	}
	if tool == ToolFileHistory && strings.TrimSpace(args["file_path"]) == "" {
		return "", &ValidationError{Field: "file_path", Reason: "file path is required"}
	}

	id := uuid.NewString()
	outDir := filepath.Join(r.outRoot, id)

	task, err := r.factory(tool, args, credential, outDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job output directory: %w", err)
	}

	job := &Job{
		ID:               id,
		Tool:             tool,
		Args:             copyArgs(args),
		CredentialMasked: audit.MaskCredential(credential),
		OutDir:           outDir,
		CreatedAt:        time.Now(),
		status:           StatusQueued,
		message:          "Queued",
	}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	if err := r.audit.Append(audit.Entry{
		Timestamp:   time.Now(),
		JobID:       id,
		Tool:        string(tool),
		Args:        job.Args,
		TokenMasked: job.CredentialMasked,
		Status:      "started",
		CmdPreview:  cmdPreview(tool, job.Args),
	}); err != nil {
		r.logger.Error("failed to write audit start record",
			zap.String("job_id", id),
			zap.Error(err),
		)
	}

	w := newWorker(task)
	job.markRunning()
	go r.supervise(job, w)

	r.logger.Info("job started",
		zap.String("job_id", id),
		zap.String("tool", string(tool)),
	)
	return id, nil
}

// supervise drains the worker's event stream incrementally, applying each
// event to the owning job, then records the terminal transition. One drain
// goroutine runs per worker so status queries never wait on worker progress.
func (r *Registry) supervise(job *Job, w *Worker) {
	for ev := range w.Events() {
		switch e := ev.(type) {
		case extract.Progress:
			job.setProgress(e.Pct, e.Msg)
		case extract.OutputAnnounced:
			job.addOutput(r.relOutput(job, e.Path))
		case extract.LogLine:
			job.appendLog(e.Text)
		}
	}

	err := w.Wait()
	if err == nil {
		job.finish(StatusSucceeded, "Done.")
	} else {
		job.appendLog(fmt.Sprintf("worker failed: %v", err))
		job.finish(StatusFailed, job.lastLogLine())
	}

	snap := job.Snapshot()
	if err := r.audit.Append(audit.Entry{
		Timestamp:   time.Now(),
		JobID:       job.ID,
		Tool:        string(job.Tool),
		Args:        job.Args,
		TokenMasked: job.CredentialMasked,
		Status:      string(snap.Status),
		DurationSec: job.durationSec(),
		Progress:    snap.Progress,
		Outputs:     snap.Outputs,
		LastMessage: snap.Message,
	}); err != nil {
		r.logger.Error("failed to write audit end record",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}

	r.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(snap.Status)),
		zap.Int("outputs", len(snap.Outputs)),
	)
}

// Status returns a snapshot of the job or ErrNotFound.
func (r *Registry) Status(id string) (Snapshot, error) {
	job, err := r.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// Outputs returns the announced output filenames of the job or ErrNotFound.
func (r *Registry) Outputs(id string) ([]string, error) {
	job, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return job.Snapshot().Outputs, nil
}

// OutDir returns the job's dedicated output directory or ErrNotFound.
func (r *Registry) OutDir(id string) (string, error) {
	job, err := r.get(id)
	if err != nil {
		return "", err
	}
	return job.OutDir, nil
}

func (r *Registry) get(id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job, nil
}

// relOutput stores output paths relative to the job's directory when
// possible so status responses stay portable.
func (r *Registry) relOutput(job *Job, path string) string {
	rel, err := filepath.Rel(job.OutDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// cmdPreview renders the equivalent CLI invocation with the credential
// redacted, for audit visibility.
func cmdPreview(tool Tool, args map[string]string) []string {
	cmd := []string{"ghextract"}
	if tool == ToolFileHistory {
		cmd = append(cmd, "file-history")
	} else {
		cmd = append(cmd, "prs")
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := args[k]
		if v == "" {
			continue
		}
		cmd = append(cmd, "--"+strings.ReplaceAll(k, "_", "-"), v)
	}
	return append(cmd, "--token", "[REDACTED]")
}

func copyArgs(args map[string]string) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
