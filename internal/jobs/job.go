// Package jobs owns the job lifecycle: registry, worker isolation, and the
// supervisor that folds worker events into job snapshots.
package jobs

import (
	"fmt"
	"sync"
	"time"
)

// Tool identifies an extraction task variant.
type Tool string

const (
	ToolPRExtractor Tool = "pr-extractor"
	ToolFileHistory Tool = "file-history-extractor"
)

// ParseTool validates a raw tool name.
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolPRExtractor, ToolFileHistory:
		return Tool(s), nil
	}
	return "", &ValidationError{Field: "tool", Reason: fmt.Sprintf("unknown tool %q", s)}
}

// Status is the job lifecycle state. Transitions are monotonic: queued →
// running → succeeded or failed, never reversed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// logTailLimit bounds the retained log tail per job.
const logTailLimit = 400

// Job is one submitted extraction request. Identity fields are immutable
// after creation; mutable progress fields are guarded against concurrent
// snapshot reads.
type Job struct {
	ID               string
	Tool             Tool
	Args             map[string]string
	CredentialMasked string
	OutDir           string
	CreatedAt        time.Time

	mu        sync.RWMutex
	status    Status
	progress  int
	message   string
	log       []string
	outputs   []string
	startedAt time.Time
	endedAt   time.Time
}

// Snapshot is a point-in-time copy of a job's observable state.
type Snapshot struct {
	ID       string   `json:"job_id"`
	Tool     Tool     `json:"tool"`
	Status   Status   `json:"status"`
	Progress int      `json:"progress"`
	Message  string   `json:"message"`
	Log      []string `json:"log"`
	Outputs  []string `json:"outputs"`
}

// Snapshot returns a copy of the job's observable state. It never blocks on
// worker progress.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:       j.ID,
		Tool:     j.Tool,
		Status:   j.status,
		Progress: j.progress,
		Message:  j.message,
		Log:      append([]string(nil), j.log...),
		Outputs:  append([]string(nil), j.outputs...),
	}
}

func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.startedAt = time.Now()
	j.progress = 1
	j.message = "Starting..."
}

// setProgress applies a progress event. Progress never decreases within a
// job's lifetime; a stale lower percentage still updates the message.
func (j *Job) setProgress(pct int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	if pct > j.progress {
		j.progress = pct
	}
	if msg != "" {
		j.message = msg
	}
}

func (j *Job) appendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.log = append(j.log, line)
	if len(j.log) > logTailLimit {
		j.log = append(j.log[:0:0], j.log[len(j.log)-logTailLimit:]...)
	}
}

// addOutput records a completed output file. Entries, once added, are never
// removed, so outputs announced before a crash survive it.
func (j *Job) addOutput(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputs = append(j.outputs, name)
}

func (j *Job) finish(status Status, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	j.status = status
	j.endedAt = time.Now()
	if msg != "" {
		j.message = msg
	}
	if status == StatusSucceeded {
		j.progress = 100
	}
}

func (j *Job) lastLogLine() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.log) == 0 {
		return ""
	}
	return j.log[len(j.log)-1]
}

func (j *Job) durationSec() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.startedAt.IsZero() {
		return 0
	}
	end := j.endedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.startedAt).Seconds()
}
