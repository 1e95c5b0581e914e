package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	// TaskStatusNew indicates the task has not been run in its current stage.
	TaskStatusNew TaskStatus = "new"
	// TaskStatusRunning indicates an agent run is active for the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the last run for the current stage succeeded.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the last run for the current stage failed or was stopped.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusInterrupted indicates a run was orphaned by a supervisor crash
	// and closed by the startup reconciliation pass.
	TaskStatusInterrupted TaskStatus = "interrupted"
)

// ExecutionStatus represents the state of a single execution record.
type ExecutionStatus string

const (
	ExecutionStatusInProgress  ExecutionStatus = "in_progress"
	ExecutionStatusDone        ExecutionStatus = "done"
	ExecutionStatusFailed      ExecutionStatus = "failed"
	ExecutionStatusInterrupted ExecutionStatus = "interrupted"
)

// TaskPriority represents the scheduling priority of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ModelRef identifies the agent model used to run a task.
type ModelRef struct {
	Provider string
	Name     string
	Harness  string
}

// String returns the canonical "provider/name" form.
func (m ModelRef) String() string {
	if m.Provider == "" && m.Name == "" {
		return ""
	}
	return m.Provider + "/" + m.Name
}

// IsZero reports whether the reference is empty.
func (m ModelRef) IsZero() bool {
	return m.Provider == "" && m.Name == ""
}

// ParseModelRef parses a "provider/name" model reference.
func ParseModelRef(s string) (ModelRef, error) {
	provider, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || provider == "" || name == "" {
		return ModelRef{}, fmt.Errorf("model reference %q must be in provider/name form: %w", s, ErrNotValid)
	}
	return ModelRef{Provider: provider, Name: name}, nil
}

// Execution is one run attempt of a task's current stage.
// CompletedAt and DurationSeconds are set together when the run finishes,
// never independently.
type Execution struct {
	ID              string          `json:"id"`
	Stage           Stage           `json:"stage"`
	Status          ExecutionStatus `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	DurationSeconds *int64          `json:"duration_seconds"`
	Model           string          `json:"model"`
	Log             string          `json:"log"`
}

// Task is a unit of work described by a document with status/stage metadata.
type Task struct {
	ID         string
	Title      string
	Status     TaskStatus
	Stage      Stage
	Priority   TaskPriority
	Model      ModelRef
	StartedAt  *time.Time
	Executions []Execution
}

// OpenExecution returns the most recently opened execution that has not been
// completed yet, or nil when there is none.
func (t *Task) OpenExecution() *Execution {
	for i := len(t.Executions) - 1; i >= 0; i-- {
		if t.Executions[i].CompletedAt == nil {
			return &t.Executions[i]
		}
	}
	return nil
}
