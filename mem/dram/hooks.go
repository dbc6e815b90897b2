package dram

import "github.com/sarchlab/nvmain/tracing"

// TaskRecorder receives one tracing.Task per completed column command,
// letting a driver plug in any of the tracing backends (CSV, SQLite, JSON)
// without the controller depending on which one is chosen.
type TaskRecorder interface {
	Init()
	Write(tracing.Task)
}

// JSONTaskRecorder adapts a tracing.JSONTracer, which reports a task's
// start and end as two separate calls, to the single-Write TaskRecorder
// contract: the controller only ever learns about a command once it has
// already completed, so each Write is reported as a Start immediately
// followed by an End.
type JSONTaskRecorder struct {
	tracer *tracing.JSONTracer
}

// NewJSONTaskRecorder wraps t for use as a TaskRecorder.
func NewJSONTaskRecorder(t *tracing.JSONTracer) *JSONTaskRecorder {
	return &JSONTaskRecorder{tracer: t}
}

// Init is a no-op: tracing.NewJSONTracer already opens its output file.
func (r *JSONTaskRecorder) Init() {}

// Write reports task as an immediate Start/End pair.
func (r *JSONTaskRecorder) Write(task tracing.Task) {
	r.tracer.StartTask(task)
	r.tracer.EndTask(task)
}
