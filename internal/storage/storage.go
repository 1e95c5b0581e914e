package storage

import (
	"context"
	"time"

	"github.com/smart-tinker/ncrew/internal/model"
)

// TaskUpdate contains the task fields to merge into a task document. Nil
// fields are left untouched, so concurrent writers of disjoint fields never
// clobber each other.
type TaskUpdate struct {
	Title      *string
	Status     *model.TaskStatus
	Stage      *model.Stage
	Priority   *model.TaskPriority
	Model      *model.ModelRef
	StartedAt  *time.Time
	Executions *[]model.Execution
}

// TaskRepository is the interface for task document persistence.
type TaskRepository interface {
	GetTask(ctx context.Context, taskID string) (*model.Task, error)
	UpdateTask(ctx context.Context, taskID string, update TaskUpdate) error
	ListTasks(ctx context.Context) ([]model.Task, error)
}

// RunJournal is the interface for durable run bookkeeping. Journal rows are
// what the startup reconciliation pass uses to detect orphaned runs.
type RunJournal interface {
	CreateRun(ctx context.Context, r model.Run) error
	CloseRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time, exitCode int) error
	ListOpenRuns(ctx context.Context) ([]model.Run, error)
}
