package taskrun

import (
	"context"
	"fmt"

	"github.com/smart-tinker/ncrew/internal/conventions"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/prompt"
	"github.com/smart-tinker/ncrew/internal/storage"
	"github.com/smart-tinker/ncrew/internal/supervisor"
	"github.com/smart-tinker/ncrew/internal/workspace"
)

// Provisioner creates the isolated workspace for a run.
type Provisioner interface {
	Provision(ctx context.Context, projectRoot, taskID, prefix string) (*workspace.Workspace, error)
}

// PromptResolver resolves the stage instruction for a run.
type PromptResolver interface {
	Resolve(ctx context.Context, projectPath string, stage model.Stage, vars prompt.Vars) string
}

// Supervisor launches and tracks the agent process.
type Supervisor interface {
	Start(ctx context.Context, req supervisor.StartRequest) (*supervisor.RunHandle, error)
}

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Repository  storage.TaskRepository
	Provisioner Provisioner
	Prompts     PromptResolver
	Supervisor  Supervisor
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Provisioner == nil {
		return fmt.Errorf("provisioner is required")
	}
	if c.Prompts == nil {
		return fmt.Errorf("prompt resolver is required")
	}
	if c.Supervisor == nil {
		return fmt.Errorf("supervisor is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskRun"})
	return nil
}

// Service starts a task run: it provisions the workspace, resolves the stage
// instruction and hands the launch to the supervisor. Provisioning or spawn
// failures abort before any task mutation.
type Service struct {
	repo        storage.TaskRepository
	provisioner Provisioner
	prompts     PromptResolver
	supervisor  Supervisor
	logger      log.Logger
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:        cfg.Repository,
		provisioner: cfg.Provisioner,
		prompts:     cfg.Prompts,
		supervisor:  cfg.Supervisor,
		logger:      cfg.Logger,
	}, nil
}

// Request represents the run request parameters.
type Request struct {
	Project model.Project
	TaskID  string
	// Model overrides the task's model when set; otherwise the task's model
	// or the project default is used.
	Model model.ModelRef
	// Env is extra environment passed through to the agent process.
	Env map[string]string
}

// Run starts the agent run for the task's current stage and returns its run
// handle.
func (s *Service) Run(ctx context.Context, req Request) (*supervisor.RunHandle, error) {
	task, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	modelRef := req.Model
	if modelRef.IsZero() {
		modelRef = task.Model
	}
	if modelRef.IsZero() {
		modelRef = req.Project.DefaultModel
	}
	if modelRef.IsZero() {
		return nil, fmt.Errorf("no model configured for task %s: %w", req.TaskID, model.ErrNotValid)
	}

	ws, err := s.provisioner.Provision(ctx, req.Project.Path, req.TaskID, req.Project.WorktreePrefix)
	if err != nil {
		return nil, fmt.Errorf("could not provision workspace: %w", err)
	}

	instruction := s.prompts.Resolve(ctx, req.Project.Path, task.Stage, prompt.Vars{
		TaskFile: conventions.TaskFileRelPath(req.TaskID),
		Branch:   ws.BranchName,
	})

	handle, err := s.supervisor.Start(ctx, supervisor.StartRequest{
		Project:       req.Project,
		Task:          *task,
		Model:         modelRef,
		WorkspacePath: ws.Path,
		Branch:        ws.BranchName,
		Prompt:        instruction,
		Env:           req.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("could not start run: %w", err)
	}

	s.logger.Infof("Run started for task %s on branch %s", req.TaskID, ws.BranchName)
	return handle, nil
}
