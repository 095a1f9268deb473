package jobs

import (
	"context"
	"fmt"

	"github.com/crowdstack/ghextract/internal/extract"
)

// Worker runs one task in an isolated goroutine and exposes its event stream
// plus a terminal exit signal. A crash in one worker never affects another;
// the event channel is closed on every exit path, including panic, so worker
// resources are always released.
type Worker struct {
	events chan extract.Event
	done   chan struct{}
	err    error
}

func newWorker(task extract.Task) *Worker {
	w := &Worker{
		events: make(chan extract.Event, 64),
		done:   make(chan struct{}),
	}
	go w.run(task)
	return w
}

func (w *Worker) run(task extract.Task) {
	defer func() {
		if r := recover(); r != nil {
			w.err = fmt.Errorf("worker panic: %v", r)
		}
		close(w.events)
		close(w.done)
	}()

	// Cancellation is deliberately unsupported: once started, a job runs to
	// completion or crash.
	w.err = task.Run(context.Background(), extract.NewEmitter(w.events))
}

// Events returns the lazy, finite event stream. It is closed when the worker
// exits.
func (w *Worker) Events() <-chan extract.Event {
	return w.events
}

// Wait blocks until the worker exits and returns its terminal error, nil on
// success.
func (w *Worker) Wait() error {
	<-w.done
	return w.err
}
