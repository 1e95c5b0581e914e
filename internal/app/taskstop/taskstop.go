package taskstop

import (
	"context"
	"fmt"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
	"github.com/smart-tinker/ncrew/internal/supervisor"
)

// Supervisor stops active agent runs.
type Supervisor interface {
	Handle(taskID string) (*supervisor.RunHandle, bool)
	Stop(ctx context.Context, taskID string) error
}

// ServiceConfig is the configuration for the stop service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Supervisor Supervisor
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskStop"})
	return nil
}

// Service stops an active task run and waits for its reconciliation.
type Service struct {
	repo       storage.TaskRepository
	supervisor Supervisor
	logger     log.Logger
}

// NewService creates a new stop service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:       cfg.Repository,
		supervisor: cfg.Supervisor,
		logger:     cfg.Logger,
	}, nil
}

// Request represents the stop request parameters.
type Request struct {
	TaskID string
}

// Run stops the task's active run. It fails with model.ErrNotFound when no
// run is active, without mutating the task. On success it waits for the exit
// reconciliation and returns the updated task.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	handle, ok := s.supervisor.Handle(req.TaskID)
	if !ok {
		return nil, fmt.Errorf("task %s is not running: %w", req.TaskID, model.ErrNotFound)
	}

	if err := s.supervisor.Stop(ctx, req.TaskID); err != nil {
		return nil, fmt.Errorf("could not stop run: %w", err)
	}

	select {
	case <-handle.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	s.logger.Infof("Stopped task %s (status %s)", req.TaskID, task.Status)
	return task, nil
}
