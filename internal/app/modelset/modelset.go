package modelset

import (
	"context"
	"fmt"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// ServiceConfig is the configuration for the model set service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.ModelSet"})
	return nil
}

// Service updates a task's model reference, and nothing else.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new model set service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the model set request parameters.
type Request struct {
	TaskID string
	Model  model.ModelRef
}

// Run sets the task's model field.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	if req.Model.IsZero() {
		return nil, fmt.Errorf("model reference is required: %w", model.ErrNotValid)
	}

	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	err = s.repo.UpdateTask(ctx, req.TaskID, storage.TaskUpdate{Model: &req.Model})
	if err != nil {
		return nil, fmt.Errorf("could not update task: %w", err)
	}

	task.Model = req.Model

	s.logger.Infof("Set model %s on task %s", req.Model, req.TaskID)
	return task, nil
}
