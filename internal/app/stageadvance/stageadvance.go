package stageadvance

import (
	"context"
	"fmt"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// ServiceConfig is the configuration for the stage advance service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.StageAdvance"})
	return nil
}

// Service advances a task to the next workflow stage. A fresh stage is a
// fresh unit of work, so the task status resets to new.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new stage advance service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the advance request parameters.
type Request struct {
	TaskID string
}

// Run advances the task's stage. It fails with model.ErrConflict unless the
// task status is done, and when the stage is already terminal.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	if task.Status != model.TaskStatusDone {
		return nil, fmt.Errorf("cannot advance task %s: status is %s, not %s: %w",
			req.TaskID, task.Status, model.TaskStatusDone, model.ErrConflict)
	}

	next, err := task.Stage.Next()
	if err != nil {
		return nil, fmt.Errorf("cannot advance task %s: %w", req.TaskID, err)
	}

	status := model.TaskStatusNew
	err = s.repo.UpdateTask(ctx, req.TaskID, storage.TaskUpdate{
		Stage:  &next,
		Status: &status,
	})
	if err != nil {
		return nil, fmt.Errorf("could not update task: %w", err)
	}

	task.Stage = next
	task.Status = status

	s.logger.Infof("Advanced task %s to stage %s", req.TaskID, next)
	return task, nil
}
