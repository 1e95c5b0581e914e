package history

import (
	"context"
	"fmt"
	"time"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// RecorderConfig is the configuration for the execution history recorder.
type RecorderConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *RecorderConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "history.Recorder"})
	return nil
}

// Recorder appends and completes execution records inside a task's metadata.
// Records are append-only except for their own in-place completion update.
type Recorder struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewRecorder creates a new execution history recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Recorder{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Open appends a new in-progress execution record to the task. It fails with
// model.ErrConflict when another record is still open.
func (r *Recorder) Open(ctx context.Context, taskID string, execution model.Execution) error {
	task, err := r.repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	if open := task.OpenExecution(); open != nil {
		return fmt.Errorf("task %s already has an open execution record: %w", taskID, model.ErrConflict)
	}

	execution.Status = model.ExecutionStatusInProgress
	execution.CompletedAt = nil
	execution.DurationSeconds = nil

	executions := append(task.Executions, execution)
	err = r.repo.UpdateTask(ctx, taskID, storage.TaskUpdate{Executions: &executions})
	if err != nil {
		return fmt.Errorf("could not persist execution record: %w", err)
	}

	r.logger.Debugf("Opened execution record for task %s (stage %s)", taskID, execution.Stage)
	return nil
}

// Close completes the most recently opened execution record, setting its
// status, completion time and duration together.
func (r *Recorder) Close(ctx context.Context, taskID string, status model.ExecutionStatus, completedAt time.Time) (*model.Execution, error) {
	task, err := r.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	open := task.OpenExecution()
	if open == nil {
		return nil, fmt.Errorf("task %s has no open execution record: %w", taskID, model.ErrNotFound)
	}

	duration := int64(completedAt.Sub(open.StartedAt) / time.Second)
	open.Status = status
	open.CompletedAt = &completedAt
	open.DurationSeconds = &duration

	err = r.repo.UpdateTask(ctx, taskID, storage.TaskUpdate{Executions: &task.Executions})
	if err != nil {
		return nil, fmt.Errorf("could not persist execution record: %w", err)
	}

	r.logger.Debugf("Closed execution record for task %s (%s)", taskID, status)

	closed := *open
	return &closed, nil
}
