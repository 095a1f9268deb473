package extract

import "context"

// Task is one CSV-producing unit of work. Run drives the extraction to
// completion, emitting progress, log lines, and output announcements on the
// way; a nil return means the job succeeded. Tasks do not support
// cancellation mid-flight: once started they run to completion or failure.
type Task interface {
	Name() string
	Run(ctx context.Context, emit *Emitter) error
}
