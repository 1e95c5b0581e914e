package supervisor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/agent/fake"
	"github.com/smart-tinker/ncrew/internal/history"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
	"github.com/smart-tinker/ncrew/internal/storage/memory"
	"github.com/smart-tinker/ncrew/internal/storage/taskfile"
	"github.com/smart-tinker/ncrew/internal/supervisor"
)

type testEnv struct {
	sup     *supervisor.Supervisor
	runner  *fake.Runner
	repo    *taskfile.Repository
	journal *memory.Journal
	logsDir string
	project model.Project
}

func newTestEnv(t *testing.T, runner *fake.Runner) *testEnv {
	t.Helper()

	projectDir := t.TempDir()
	tasksDir := filepath.Join(projectDir, "tasks")
	require.NoError(t, os.MkdirAll(tasksDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tasksDir, "t1.md"),
		[]byte("---\ntitle: Task one\nstatus: new\nstage: specification\n---\nBody.\n"), 0644))

	repo, err := taskfile.NewRepository(taskfile.RepositoryConfig{TasksDir: tasksDir})
	require.NoError(t, err)

	recorder, err := history.NewRecorder(history.RecorderConfig{Repository: repo})
	require.NoError(t, err)

	journal, err := memory.NewJournal(memory.JournalConfig{})
	require.NoError(t, err)

	logsDir := filepath.Join(t.TempDir(), "logs")

	sup, err := supervisor.New(supervisor.Config{
		Runner:      runner,
		Repository:  repo,
		Recorder:    recorder,
		Journal:     journal,
		LogsDir:     logsDir,
		GracePeriod: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	return &testEnv{
		sup:     sup,
		runner:  runner,
		repo:    repo,
		journal: journal,
		logsDir: logsDir,
		project: model.Project{
			ID:             "proj",
			Path:           projectDir,
			WorktreePrefix: "task-",
			AgentCommand:   "agent",
		},
	}
}

func (e *testEnv) startRequest(t *testing.T) supervisor.StartRequest {
	t.Helper()

	task, err := e.repo.GetTask(context.Background(), "t1")
	require.NoError(t, err)

	return supervisor.StartRequest{
		Project:       e.project,
		Task:          *task,
		Model:         model.ModelRef{Provider: "anthropic", Name: "claude-sonnet"},
		WorkspacePath: filepath.Join(e.project.Path, "worktrees", "task-t1"),
		Branch:        "task-t1",
		Prompt:        "do the work",
	}
}

func waitDone(t *testing.T, handle *supervisor.RunHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run reconciliation")
	}
}

func TestSupervisorSuccessfulRun(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	// Task is marked running and an execution record is open.
	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, task.Status)
	require.NotNil(t, task.OpenExecution())
	assert.Equal(t, handle.RunID, task.OpenExecution().ID)

	// The run is journaled.
	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, handle.RunID, open[0].ID)
	assert.Equal(t, handle.PID, open[0].PID)

	proc := env.runner.LastProcess()
	require.NoError(t, proc.WriteOutput("agent output line\n"))
	proc.Exit(0)
	waitDone(t, handle)

	status, exitCode := handle.Result()
	assert.Equal(t, model.TaskStatusDone, status)
	assert.Equal(t, 0, exitCode)

	// Task, execution record and journal are all reconciled.
	task, err = env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDone, task.Status)
	require.Len(t, task.Executions, 1)
	assert.Equal(t, model.ExecutionStatusDone, task.Executions[0].Status)
	assert.NotNil(t, task.Executions[0].CompletedAt)

	open, err = env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Handle is gone once reconciled.
	_, ok := env.sup.Handle("t1")
	assert.False(t, ok)

	// Log carries banners around the streamed output.
	logData, err := os.ReadFile(handle.LogPath)
	require.NoError(t, err)
	log := string(logData)
	assert.Contains(t, log, "run started")
	assert.Contains(t, log, "model:     anthropic/claude-sonnet")
	assert.Contains(t, log, "agent output line")
	assert.Contains(t, log, "exit code: 0")
}

func TestSupervisorFailedRun(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	env.runner.LastProcess().Exit(3)
	waitDone(t, handle)

	status, exitCode := handle.Result()
	assert.Equal(t, model.TaskStatusFailed, status)
	assert.Equal(t, 3, exitCode)

	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	require.Len(t, task.Executions, 1)
	assert.Equal(t, model.ExecutionStatusFailed, task.Executions[0].Status)
}

func TestSupervisorStartConflict(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	_, err = env.sup.Start(ctx, env.startRequest(t))
	require.ErrorIs(t, err, model.ErrConflict)

	// Only one process was ever spawned.
	assert.Equal(t, 1, env.runner.StartedCount())

	env.runner.LastProcess().Exit(0)
	waitDone(t, handle)
}

func TestSupervisorSpawnFailureLeavesTaskUntouched(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{StartErr: errors.New("agent binary not found")})
	ctx := context.Background()

	_, err := env.sup.Start(ctx, env.startRequest(t))
	require.Error(t, err)

	// No status change, no execution record, no journal row, no handle.
	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusNew, task.Status)
	assert.Empty(t, task.Executions)

	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, ok := env.sup.Handle("t1")
	assert.False(t, ok)
}

func TestSupervisorStop(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{ExitOnSignal: true, ExitOnSignalCode: 0})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	require.NoError(t, env.sup.Stop(ctx, "t1"))
	waitDone(t, handle)

	// Even with a zero exit code a stopped run is never classified done.
	status, _ := handle.Result()
	assert.Equal(t, model.TaskStatusFailed, status)

	proc := env.runner.LastProcess()
	require.Len(t, proc.Signals(), 1)
	assert.Equal(t, syscall.SIGTERM, proc.Signals()[0])

	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
}

func TestSupervisorStopEscalatesToKill(t *testing.T) {
	// The process ignores SIGTERM, the grace period must escalate to kill.
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	require.NoError(t, env.sup.Stop(ctx, "t1"))
	waitDone(t, handle)

	assert.True(t, env.runner.LastProcess().Killed())

	status, exitCode := handle.Result()
	assert.Equal(t, model.TaskStatusFailed, status)
	assert.Equal(t, -1, exitCode)
}

func TestSupervisorStopWithoutRun(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{})

	err := env.sup.Stop(context.Background(), "t1")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSupervisorStopTwice(t *testing.T) {
	// The process ignores SIGTERM, so the run is still terminating when the
	// second stop arrives.
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	handle, err := env.sup.Start(ctx, env.startRequest(t))
	require.NoError(t, err)

	require.NoError(t, env.sup.Stop(ctx, "t1"))

	err = env.sup.Stop(ctx, "t1")
	require.ErrorIs(t, err, model.ErrNotFound)

	waitDone(t, handle)

	// Only the first stop delivered a signal.
	require.Len(t, env.runner.LastProcess().Signals(), 1)
}

func TestSupervisorHandleHiddenDuringSpawn(t *testing.T) {
	// While the spawn is in flight the handle must stay invisible, so a
	// concurrent stop never reaches a run without a live process.
	env := newTestEnv(t, &fake.Runner{StartDelay: 50 * time.Millisecond, ExitOnSignal: true})
	ctx := context.Background()
	req := env.startRequest(t)

	type startResult struct {
		handle *supervisor.RunHandle
		err    error
	}
	resultCh := make(chan startResult, 1)
	go func() {
		handle, err := env.sup.Start(ctx, req)
		resultCh <- startResult{handle: handle, err: err}
	}()

	deadline := time.Now().Add(25 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, ok := env.sup.Handle("t1")
		assert.False(t, ok)
		require.ErrorIs(t, env.sup.Stop(ctx, "t1"), model.ErrNotFound)
	}

	res := <-resultCh
	require.NoError(t, res.err)

	require.NoError(t, env.sup.Stop(ctx, "t1"))
	waitDone(t, res.handle)
}

func TestSupervisorBookkeepingFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, &fake.Runner{})
	ctx := context.Background()

	// A dangling open execution record makes opening a new one conflict,
	// after the task was already marked running.
	executions := []model.Execution{{
		ID:        "stale",
		Stage:     model.StageSpecification,
		Status:    model.ExecutionStatusInProgress,
		StartedAt: time.Now().UTC(),
	}}
	require.NoError(t, env.repo.UpdateTask(ctx, "t1", storage.TaskUpdate{Executions: &executions}))

	_, err := env.sup.Start(ctx, env.startRequest(t))
	require.ErrorIs(t, err, model.ErrConflict)

	// The spawned process was killed and every mutation unwound: status back
	// to new, no open journal row, no handle.
	assert.True(t, env.runner.LastProcess().Killed())

	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusNew, task.Status)

	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, ok := env.sup.Handle("t1")
	assert.False(t, ok)
}
