package domain

import (
	"fmt"
	"strconv"
)

// TaskKind selects the frontend operation a task performs.
type TaskKind string

const (
	// KindCompile type-checks and emits code.
	KindCompile TaskKind = "compile"
	// KindCheck type-checks only.
	KindCheck TaskKind = "check"
)

// Payload is the work a task carries to a worker.
type Payload struct {
	Source  string
	Options Options
	// Path labels the task in logs and traces. Empty for in-memory sources.
	Path string
}

// Task is a unit of schedulable work. ID is assigned by the pool on submission.
type Task struct {
	ID      uint64
	Kind    TaskKind
	Payload Payload
}

// Label returns a human readable task identifier.
func (t Task) Label() string {
	if t.Payload.Path != "" {
		return t.Payload.Path
	}
	return string(t.Kind) + "#" + strconv.FormatUint(t.ID, 10)
}

// WorkerState is the lifecycle state of a worker slot.
type WorkerState string

const (
	// WorkerIdle is ready for an assignment.
	WorkerIdle WorkerState = "idle"
	// WorkerBusy holds an active task.
	WorkerBusy WorkerState = "busy"
	// WorkerCrashed terminated abnormally and awaits replacement.
	WorkerCrashed WorkerState = "crashed"
	// WorkerRestarting is being replaced with a fresh worker.
	WorkerRestarting WorkerState = "restarting"
)

// TaskError is a scheduling failure of a single task. Err is one of
// ErrTaskTimeout, ErrWorkerCrashed or ErrPoolShutdown.
type TaskError struct {
	TaskID   uint64
	Kind     TaskKind
	Attempts int
	Err      error
	Cause    error
}

func (e *TaskError) Error() string {
	msg := fmt.Sprintf("%s task %d: %s", e.Kind, e.TaskID, e.Err.Error())
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the scheduling sentinel.
func (e *TaskError) Unwrap() error {
	return e.Err
}
