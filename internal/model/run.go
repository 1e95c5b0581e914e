package model

import "time"

// RunStatus represents the state of a journaled run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusDone        RunStatus = "done"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// Run is the durable journal record of one agent execution. The journal is
// what survives a supervisor crash: the startup reconciliation pass closes any
// run left open whose process is no longer alive.
type Run struct {
	ID            string
	ProjectID     string
	TaskID        string
	Stage         Stage
	Branch        string
	WorkspacePath string
	LogPath       string
	Model         string
	PID           int
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    *time.Time
	ExitCode      *int
}
