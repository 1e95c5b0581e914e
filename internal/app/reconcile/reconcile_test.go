package reconcile_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/app/reconcile"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
	"github.com/smart-tinker/ncrew/internal/storage/memory"
	"github.com/smart-tinker/ncrew/internal/storage/taskfile"
)

type staticProjects map[string]model.Project

func (p staticProjects) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	project, ok := p[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, model.ErrNotFound)
	}
	return &project, nil
}

type testEnv struct {
	svc      *reconcile.Service
	journal  *memory.Journal
	repo     *taskfile.Repository
	tasksDir string
}

func newTestEnv(t *testing.T, alive func(pid int) bool) *testEnv {
	t.Helper()

	projectDir := t.TempDir()
	tasksDir := filepath.Join(projectDir, "tasks")
	require.NoError(t, os.MkdirAll(tasksDir, 0755))

	repo, err := taskfile.NewRepository(taskfile.RepositoryConfig{TasksDir: tasksDir})
	require.NoError(t, err)

	journal, err := memory.NewJournal(memory.JournalConfig{})
	require.NoError(t, err)

	projects := staticProjects{
		"proj": {ID: "proj", Path: projectDir, WorktreePrefix: "task-", AgentCommand: "agent"},
	}

	svc, err := reconcile.NewService(reconcile.ServiceConfig{
		Journal:  journal,
		Projects: projects,
		Repositories: reconcile.TaskRepositoriesFunc(func(p model.Project) (storage.TaskRepository, error) {
			return repo, nil
		}),
		ProcessAlive: alive,
	})
	require.NoError(t, err)

	return &testEnv{svc: svc, journal: journal, repo: repo, tasksDir: tasksDir}
}

// seedRunningTask creates a task document marked running with an open
// execution record, plus its open journal run, as a crashed supervisor would
// leave them.
func (e *testEnv) seedRunningTask(t *testing.T, taskID, runID string, pid int) {
	t.Helper()
	ctx := context.Background()

	startedAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	executions := fmt.Sprintf(`[{"id":%q,"stage":"specification","status":"in_progress","started_at":%q,"completed_at":null,"duration_seconds":null,"model":"anthropic/claude-sonnet","log":"x.log"}]`,
		runID, startedAt.Format(time.RFC3339))
	content := fmt.Sprintf("---\ntitle: Task\nstatus: running\nstage: specification\nexecutions: %s\n---\nBody.\n", executions)
	require.NoError(t, os.WriteFile(filepath.Join(e.tasksDir, taskID+".md"), []byte(content), 0644))

	require.NoError(t, e.journal.CreateRun(ctx, model.Run{
		ID:        runID,
		ProjectID: "proj",
		TaskID:    taskID,
		Stage:     model.StageSpecification,
		Status:    model.RunStatusRunning,
		PID:       pid,
		StartedAt: startedAt,
	}))
}

func TestReconcileClosesOrphanedRun(t *testing.T) {
	env := newTestEnv(t, func(pid int) bool { return false })
	env.seedRunningTask(t, "t1", "run-1", 4242)
	ctx := context.Background()

	report, err := env.svc.Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Interrupted, 1)
	assert.Equal(t, "run-1", report.Interrupted[0].ID)
	assert.Empty(t, report.Alive)

	// Journal run is closed.
	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Task status and execution record are closed as interrupted.
	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInterrupted, task.Status)
	require.Len(t, task.Executions, 1)
	assert.Equal(t, model.ExecutionStatusInterrupted, task.Executions[0].Status)
	assert.NotNil(t, task.Executions[0].CompletedAt)
	assert.Nil(t, task.OpenExecution())
}

func TestReconcileSkipsAliveProcess(t *testing.T) {
	env := newTestEnv(t, func(pid int) bool { return true })
	env.seedRunningTask(t, "t1", "run-1", 4242)
	ctx := context.Background()

	report, err := env.svc.Run(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Interrupted)
	require.Len(t, report.Alive, 1)

	// Nothing was touched.
	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	task, err := env.repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, task.Status)
	assert.NotNil(t, task.OpenExecution())
}

func TestReconcileEmptyJournal(t *testing.T) {
	env := newTestEnv(t, func(pid int) bool { return false })

	report, err := env.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Interrupted)
	assert.Empty(t, report.Alive)
}

func TestReconcileContinuesOnProjectError(t *testing.T) {
	// Two orphans, one of them pointing at an unknown project: the bad one is
	// skipped and the good one still reconciled.
	env := newTestEnv(t, func(pid int) bool { return false })
	env.seedRunningTask(t, "t1", "run-1", 4242)

	ctx := context.Background()
	require.NoError(t, env.journal.CreateRun(ctx, model.Run{
		ID:        "run-ghost",
		ProjectID: "unknown",
		TaskID:    "ghost",
		Stage:     model.StageSpecification,
		Status:    model.RunStatusRunning,
		PID:       5000,
		StartedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	report, err := env.svc.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Interrupted, 1)
	assert.Equal(t, "run-1", report.Interrupted[0].ID)

	// The failed orphan keeps its open journal row, so a later pass can
	// retry it.
	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "run-ghost", open[0].ID)
}

func TestReconcileTaskUpdateFailureKeepsRunOpen(t *testing.T) {
	// The task document update fails (the document is gone), so the journal
	// run must stay open for the next pass instead of being lost forever.
	env := newTestEnv(t, func(pid int) bool { return false })
	env.seedRunningTask(t, "t1", "run-1", 4242)
	ctx := context.Background()

	require.NoError(t, os.Remove(filepath.Join(env.tasksDir, "t1.md")))

	report, err := env.svc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Interrupted)

	open, err := env.journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "run-1", open[0].ID)
}
