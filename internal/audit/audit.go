// Package audit maintains the process-wide append-only job lifecycle log.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one immutable lifecycle record. Two are written per job, one at
// start and one at end; entries are never edited or deleted.
type Entry struct {
	Timestamp   time.Time         `json:"ts"`
	JobID       string            `json:"job_id"`
	Tool        string            `json:"tool"`
	Args        map[string]string `json:"args"`
	TokenMasked string            `json:"token_masked"`
	Status      string            `json:"status"`
	DurationSec float64           `json:"duration_sec,omitempty"`
	Progress    int               `json:"progress,omitempty"`
	Outputs     []string          `json:"outputs,omitempty"`
	LastMessage string            `json:"last_message,omitempty"`
	CmdPreview  []string          `json:"cmd_preview,omitempty"`
}

// Logger appends entries to a single JSON-lines file. Appends are serialized
// so records from concurrently completing jobs never interleave.
type Logger struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewLogger creates an audit logger writing to path.
func NewLogger(path string, logger *zap.Logger) *Logger {
	return &Logger{path: path, logger: logger}
}

// Append writes one entry. The file is opened append-only on every write so
// an external rotation never truncates pending records.
func (l *Logger) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	l.logger.Info("audit entry written",
		zap.String("job_id", e.JobID),
		zap.String("status", e.Status),
	)
	return nil
}

// Tail returns up to n most recent entries in file order. Unparseable lines
// are skipped rather than failing the read.
func (l *Logger) Tail(n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			l.logger.Warn("skipping malformed audit line", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
