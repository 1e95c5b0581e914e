package taskget

import (
	"context"
	"fmt"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// ServiceConfig is the configuration for the task get service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskGet"})
	return nil
}

// Service loads a single task with its execution history.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new task get service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{repo: cfg.Repository, logger: cfg.Logger}, nil
}

// Request represents the get request parameters.
type Request struct {
	TaskID string
}

// Run returns the task.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return task, nil
}
