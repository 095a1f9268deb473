// Package extract holds the extraction tasks and the event stream they emit
// while running.
package extract

import "fmt"

// Event is one element of a worker's event stream. The stream replaces an ad
// hoc stdout line protocol with tagged values the supervisor can apply
// without string parsing.
type Event interface {
	event()
}

// Progress carries a 0-100 completion percentage and a status line.
type Progress struct {
	Pct int
	Msg string
}

// OutputAnnounced signals that an output file is completely written and safe
// to expose. It is emitted strictly after the file is closed.
type OutputAnnounced struct {
	Path string
}

// LogLine is one raw line of worker output.
type LogLine struct {
	Text string
}

func (Progress) event()        {}
func (OutputAnnounced) event() {}
func (LogLine) event()         {}

// Emitter is the task-facing producer side of an event stream.
type Emitter struct {
	ch chan<- Event
}

// NewEmitter wraps an event channel. The channel is owned and closed by the
// worker, not the emitter.
func NewEmitter(ch chan<- Event) *Emitter {
	return &Emitter{ch: ch}
}

// Progress emits a progress update, clamped to 0-100.
func (e *Emitter) Progress(pct int, msg string) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	e.ch <- Progress{Pct: pct, Msg: msg}
}

// Output announces a completed output file.
func (e *Emitter) Output(path string) {
	e.ch <- OutputAnnounced{Path: path}
}

// Logf emits a formatted log line.
func (e *Emitter) Logf(format string, args ...any) {
	e.ch <- LogLine{Text: fmt.Sprintf(format, args...)}
}
