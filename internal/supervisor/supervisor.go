package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/smart-tinker/ncrew/internal/agent"
	"github.com/smart-tinker/ncrew/internal/conventions"
	"github.com/smart-tinker/ncrew/internal/history"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// defaultGracePeriod is how long a stop request waits after SIGTERM before
// force-killing the process.
const defaultGracePeriod = 10 * time.Second

// Recorder opens and closes execution records in the task document.
type Recorder interface {
	Open(ctx context.Context, taskID string, execution model.Execution) error
	Close(ctx context.Context, taskID string, status model.ExecutionStatus, completedAt time.Time) (*model.Execution, error)
}

// Recorder is implemented by history.Recorder.
var _ Recorder = &history.Recorder{}

// Config is the configuration for the supervisor.
type Config struct {
	Runner     agent.Runner
	Repository storage.TaskRepository
	Recorder   Recorder
	Journal    storage.RunJournal
	// LogsDir is where per-run log artifacts are created.
	LogsDir string
	// GracePeriod is the SIGTERM-to-SIGKILL escalation delay for stop requests.
	GracePeriod time.Duration
	Logger      log.Logger
}

func (c *Config) defaults() error {
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Recorder == nil {
		return fmt.Errorf("recorder is required")
	}
	if c.Journal == nil {
		return fmt.Errorf("journal is required")
	}
	if c.LogsDir == "" {
		return fmt.Errorf("logs dir is required")
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "supervisor.Supervisor"})
	return nil
}

// Supervisor launches and supervises agent processes, one active run per task
// at most. It owns the run handle registry: registration is an atomic
// check-and-insert, and handles are removed synchronously with status
// reconciliation, which runs exactly once per process lifetime.
type Supervisor struct {
	runner      agent.Runner
	repo        storage.TaskRepository
	recorder    Recorder
	journal     storage.RunJournal
	logsDir     string
	gracePeriod time.Duration
	logger      log.Logger

	mu      sync.Mutex
	handles map[string]*RunHandle
}

// New creates a new supervisor.
func New(cfg Config) (*Supervisor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Supervisor{
		runner:      cfg.Runner,
		repo:        cfg.Repository,
		recorder:    cfg.Recorder,
		journal:     cfg.Journal,
		logsDir:     cfg.LogsDir,
		gracePeriod: cfg.GracePeriod,
		logger:      cfg.Logger,
		handles:     make(map[string]*RunHandle),
	}, nil
}

// StartRequest describes one run to launch.
type StartRequest struct {
	Project       model.Project
	Task          model.Task
	Model         model.ModelRef
	WorkspacePath string
	Branch        string
	Prompt        string
	Env           map[string]string
}

// RunHandle is the transient in-memory association of a task with its active
// process. It exists only while the process is active.
type RunHandle struct {
	RunID         string
	TaskID        string
	Branch        string
	WorkspacePath string
	LogPath       string
	StartedAt     time.Time
	PID           int

	proc    agent.Process
	pending bool
	done    chan struct{}

	mu            sync.Mutex
	stopRequested bool
	finalStatus   model.TaskStatus
	exitCode      int
}

// Done is closed once the run has been reconciled and the handle removed.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Result returns the reconciled task status and process exit code. It is only
// valid after Done is closed.
func (h *RunHandle) Result() (model.TaskStatus, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.finalStatus, h.exitCode
}

// Start launches the agent process for the task's current stage. It fails
// with model.ErrConflict when a run is already active for the task. Spawn
// failures abort before any status or history mutation, so the task is left
// exactly as it was.
func (s *Supervisor) Start(ctx context.Context, req StartRequest) (*RunHandle, error) {
	if req.Model.IsZero() {
		return nil, fmt.Errorf("model reference is required: %w", model.ErrNotValid)
	}

	taskID := req.Task.ID
	startedAt := time.Now().UTC()

	handle := &RunHandle{
		RunID:         ulid.Make().String(),
		TaskID:        taskID,
		Branch:        req.Branch,
		WorkspacePath: req.WorkspacePath,
		StartedAt:     startedAt,
		pending:       true,
		done:          make(chan struct{}),
	}

	// Reserve the task slot before doing anything slow: the registry insert
	// is the atomic "already running" check.
	s.mu.Lock()
	if _, ok := s.handles[taskID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("task %s is already running: %w", taskID, model.ErrConflict)
	}
	s.handles[taskID] = handle
	s.mu.Unlock()

	handle.LogPath = conventions.LogFilePath(s.logsDir, taskID, req.Task.Stage, startedAt)

	logFile, err := s.openLog(handle.LogPath)
	if err != nil {
		s.removeHandle(taskID)
		return nil, err
	}

	taskFileRef := conventions.TaskFileRelPath(taskID)
	writeStartBanner(logFile, req.Model.String(), req.WorkspacePath, taskFileRef, startedAt)

	proc, err := s.runner.Start(ctx, agent.Spec{
		Command: req.Project.AgentCommand,
		Model:   req.Model.String(),
		Prompt:  req.Prompt,
		WorkDir: req.WorkspacePath,
		Env:     req.Env,
		Output:  logFile,
	})
	if err != nil {
		logFile.Close()
		s.removeHandle(taskID)
		return nil, fmt.Errorf("could not spawn agent: %w", err)
	}

	// Publish the live process under the registry lock: Stop and Handle read
	// pending under the same lock, so they never observe a handle without it.
	s.mu.Lock()
	handle.proc = proc
	handle.PID = proc.PID()
	handle.pending = false
	s.mu.Unlock()

	if err := s.openBookkeeping(ctx, req, handle); err != nil {
		// The process is already live; kill it and undo the reservation so
		// the failed start does not leave a half-registered run behind.
		s.logger.Errorf("Run bookkeeping failed, killing agent process %d: %v", handle.PID, err)
		_ = proc.Kill()
		proc.Wait()
		logFile.Close()
		s.removeHandle(taskID)
		return nil, err
	}

	s.logger.Infof("Started run %s for task %s (stage %s, pid %d)", handle.RunID, taskID, req.Task.Stage, handle.PID)

	go s.superviseExit(req, handle, logFile)

	return handle, nil
}

// Stop delivers a termination signal to the task's active process. It fails
// with model.ErrNotFound when no run is active. Reconciliation fires through
// the normal exit path once the OS confirms termination; a stopped run is
// never classified done.
func (s *Supervisor) Stop(ctx context.Context, taskID string) error {
	s.mu.Lock()
	handle, ok := s.handles[taskID]
	if !ok || handle.pending {
		s.mu.Unlock()
		return fmt.Errorf("task %s is not running: %w", taskID, model.ErrNotFound)
	}
	s.mu.Unlock()

	handle.mu.Lock()
	alreadyRequested := handle.stopRequested
	handle.stopRequested = true
	handle.mu.Unlock()

	if alreadyRequested {
		return fmt.Errorf("task %s is already stopping: %w", taskID, model.ErrNotFound)
	}

	s.logger.Infof("Stopping run %s for task %s", handle.RunID, taskID)

	if err := handle.proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("could not signal agent process: %w", err)
	}

	// Escalate to SIGKILL if the process outlives the grace period.
	go func() {
		select {
		case <-handle.done:
		case <-time.After(s.gracePeriod):
			s.logger.Warningf("Agent process %d ignored SIGTERM, killing", handle.PID)
			_ = handle.proc.Kill()
		}
	}()

	return nil
}

// Handle returns the active run handle for a task, if any.
func (s *Supervisor) Handle(taskID string) (*RunHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.handles[taskID]
	if !ok || handle.pending {
		return nil, false
	}
	return handle, true
}

func (s *Supervisor) removeHandle(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handles, taskID)
}

func (s *Supervisor) openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create logs directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create run log: %w", err)
	}

	return f, nil
}

// openBookkeeping journals the run, marks the task running and opens the
// execution record. On partial failure it unwinds what it already committed,
// so a failed start never leaves a half-mutated task or an open journal row.
func (s *Supervisor) openBookkeeping(ctx context.Context, req StartRequest, handle *RunHandle) error {
	err := s.journal.CreateRun(ctx, model.Run{
		ID:            handle.RunID,
		ProjectID:     req.Project.ID,
		TaskID:        handle.TaskID,
		Stage:         req.Task.Stage,
		Branch:        handle.Branch,
		WorkspacePath: handle.WorkspacePath,
		LogPath:       handle.LogPath,
		Model:         req.Model.String(),
		PID:           handle.PID,
		Status:        model.RunStatusRunning,
		StartedAt:     handle.StartedAt,
	})
	if err != nil {
		return fmt.Errorf("could not journal run: %w", err)
	}

	status := model.TaskStatusRunning
	err = s.repo.UpdateTask(ctx, handle.TaskID, storage.TaskUpdate{
		Status:    &status,
		StartedAt: &handle.StartedAt,
	})
	if err != nil {
		s.rollbackRun(ctx, handle)
		return fmt.Errorf("could not mark task running: %w", err)
	}

	err = s.recorder.Open(ctx, handle.TaskID, model.Execution{
		ID:        handle.RunID,
		Stage:     req.Task.Stage,
		StartedAt: handle.StartedAt,
		Model:     req.Model.String(),
		Log:       conventions.LogFileName(handle.TaskID, req.Task.Stage, handle.StartedAt),
	})
	if err != nil {
		s.rollbackTaskStatus(ctx, handle.TaskID, req.Task.Status)
		s.rollbackRun(ctx, handle)
		return fmt.Errorf("could not open execution record: %w", err)
	}

	return nil
}

// rollbackRun closes the journal row of a start that never got off the
// ground. Best effort: a leftover open row is self-healed by the next
// reconcile pass anyway.
func (s *Supervisor) rollbackRun(ctx context.Context, handle *RunHandle) {
	if err := s.journal.CloseRun(ctx, handle.RunID, model.RunStatusFailed, time.Now().UTC(), -1); err != nil {
		s.logger.Warningf("Could not close journal run %s after failed start: %v", handle.RunID, err)
	}
}

// rollbackTaskStatus restores the task status a failed start had overwritten.
func (s *Supervisor) rollbackTaskStatus(ctx context.Context, taskID string, status model.TaskStatus) {
	if err := s.repo.UpdateTask(ctx, taskID, storage.TaskUpdate{Status: &status}); err != nil {
		s.logger.Warningf("Could not restore task %s status after failed start: %v", taskID, err)
	}
}

// superviseExit waits for the process to exit and reconciles exactly once,
// whether termination was natural or requested.
func (s *Supervisor) superviseExit(req StartRequest, handle *RunHandle, logFile *os.File) {
	exitCode := handle.proc.Wait()
	completedAt := time.Now().UTC()

	handle.mu.Lock()
	stopped := handle.stopRequested
	handle.mu.Unlock()

	taskStatus := model.TaskStatusFailed
	execStatus := model.ExecutionStatusFailed
	runStatus := model.RunStatusFailed
	if exitCode == 0 && !stopped {
		taskStatus = model.TaskStatusDone
		execStatus = model.ExecutionStatusDone
		runStatus = model.RunStatusDone
	}

	writeCompletionBanner(logFile, exitCode, completedAt)
	if err := logFile.Close(); err != nil {
		s.logger.Warningf("Could not close run log: %v", err)
	}

	// Detached context: the run request's context may be long gone.
	ctx := context.Background()

	err := s.repo.UpdateTask(ctx, handle.TaskID, storage.TaskUpdate{Status: &taskStatus})
	if err != nil {
		s.logger.Errorf("Could not update task %s status: %v", handle.TaskID, err)
	}

	if _, err := s.recorder.Close(ctx, handle.TaskID, execStatus, completedAt); err != nil {
		s.logger.Errorf("Could not close execution record for task %s: %v", handle.TaskID, err)
	}

	if err := s.journal.CloseRun(ctx, handle.RunID, runStatus, completedAt, exitCode); err != nil {
		s.logger.Errorf("Could not close journal run %s: %v", handle.RunID, err)
	}

	handle.mu.Lock()
	handle.finalStatus = taskStatus
	handle.exitCode = exitCode
	handle.mu.Unlock()

	s.removeHandle(handle.TaskID)
	close(handle.done)

	s.logger.Infof("Run %s for task %s finished: %s (exit code %d)", handle.RunID, handle.TaskID, taskStatus, exitCode)
}

func writeStartBanner(f *os.File, modelRef, workspacePath, taskFileRef string, startedAt time.Time) {
	fmt.Fprintf(f, "=== ncrew run started ===\n")
	fmt.Fprintf(f, "model:     %s\n", modelRef)
	fmt.Fprintf(f, "workspace: %s\n", workspacePath)
	fmt.Fprintf(f, "task:      %s\n", taskFileRef)
	fmt.Fprintf(f, "started:   %s\n", startedAt.Format(time.RFC3339))
	fmt.Fprintf(f, "=========================\n")
}

func writeCompletionBanner(f *os.File, exitCode int, completedAt time.Time) {
	fmt.Fprintf(f, "\n=== ncrew run finished ===\n")
	fmt.Fprintf(f, "exit code: %d\n", exitCode)
	fmt.Fprintf(f, "completed: %s\n", completedAt.Format(time.RFC3339))
	fmt.Fprintf(f, "==========================\n")
}
