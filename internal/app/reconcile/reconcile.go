package reconcile

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/smart-tinker/ncrew/internal/history"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// ProjectGetter resolves registered projects.
type ProjectGetter interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
}

// TaskRepositories resolves the task repository for a project.
type TaskRepositories interface {
	ForProject(project model.Project) (storage.TaskRepository, error)
}

// TaskRepositoriesFunc adapts a function to the TaskRepositories interface.
type TaskRepositoriesFunc func(project model.Project) (storage.TaskRepository, error)

func (f TaskRepositoriesFunc) ForProject(p model.Project) (storage.TaskRepository, error) {
	return f(p)
}

// ServiceConfig is the configuration for the reconcile service.
type ServiceConfig struct {
	Journal      storage.RunJournal
	Projects     ProjectGetter
	Repositories TaskRepositories
	// ProcessAlive reports whether a pid refers to a live process. Defaults
	// to a kill(pid, 0) probe.
	ProcessAlive func(pid int) bool
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Journal == nil {
		return fmt.Errorf("journal is required")
	}
	if c.Projects == nil {
		return fmt.Errorf("project getter is required")
	}
	if c.Repositories == nil {
		return fmt.Errorf("repositories resolver is required")
	}
	if c.ProcessAlive == nil {
		c.ProcessAlive = processAlive
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Reconcile"})
	return nil
}

// Service closes runs orphaned by a supervisor crash. The run-handle registry
// is in-memory only, so after a restart any journal run still marked running
// whose process is gone must be closed as interrupted, together with the
// task's status and its open execution record.
type Service struct {
	journal      storage.RunJournal
	projects     ProjectGetter
	repos        TaskRepositories
	processAlive func(pid int) bool
	logger       log.Logger
}

// NewService creates a new reconcile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		journal:      cfg.Journal,
		projects:     cfg.Projects,
		repos:        cfg.Repositories,
		processAlive: cfg.ProcessAlive,
		logger:       cfg.Logger,
	}, nil
}

// Report summarizes one reconciliation pass.
type Report struct {
	// Interrupted are the orphaned runs that were closed.
	Interrupted []model.Run
	// Alive are open runs whose process is still alive and were left alone.
	Alive []model.Run
}

// Run performs one reconciliation pass over all open journal runs.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	open, err := s.journal.ListOpenRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list open runs: %w", err)
	}

	report := &Report{}
	for _, run := range open {
		if s.processAlive(run.PID) {
			s.logger.Debugf("Run %s (pid %d) is still alive, skipping", run.ID, run.PID)
			report.Alive = append(report.Alive, run)
			continue
		}

		if err := s.closeOrphan(ctx, run); err != nil {
			s.logger.Errorf("Could not reconcile run %s: %v", run.ID, err)
			continue
		}

		run.Status = model.RunStatusInterrupted
		report.Interrupted = append(report.Interrupted, run)
	}

	return report, nil
}

// closeOrphan reconciles the task document first and commits the journal
// close last: until the journal row is closed the run stays listed by
// ListOpenRuns, so a failure anywhere leaves the pass retryable.
func (s *Service) closeOrphan(ctx context.Context, run model.Run) error {
	now := time.Now().UTC()

	project, err := s.projects.GetProject(ctx, run.ProjectID)
	if err != nil {
		return fmt.Errorf("could not get project: %w", err)
	}

	repo, err := s.repos.ForProject(*project)
	if err != nil {
		return fmt.Errorf("could not get task repository: %w", err)
	}

	status := model.TaskStatusInterrupted
	if err := repo.UpdateTask(ctx, run.TaskID, storage.TaskUpdate{Status: &status}); err != nil {
		return fmt.Errorf("could not update task status: %w", err)
	}

	recorder, err := history.NewRecorder(history.RecorderConfig{Repository: repo, Logger: s.logger})
	if err != nil {
		return fmt.Errorf("could not create recorder: %w", err)
	}

	_, err = recorder.Close(ctx, run.TaskID, model.ExecutionStatusInterrupted, now)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("could not close execution record: %w", err)
	}

	if err := s.journal.CloseRun(ctx, run.ID, model.RunStatusInterrupted, now, -1); err != nil {
		return fmt.Errorf("could not close journal run: %w", err)
	}

	s.logger.Infof("Reconciled orphaned run %s for task %s as interrupted", run.ID, run.TaskID)
	return nil
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
