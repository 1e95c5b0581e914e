package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/history"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage/taskfile"
)

func newTestRecorder(t *testing.T) (*history.Recorder, *taskfile.Repository) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t1.md"), []byte("---\ntitle: Task\n---\nBody.\n"), 0644))

	repo, err := taskfile.NewRepository(taskfile.RepositoryConfig{TasksDir: dir})
	require.NoError(t, err)

	recorder, err := history.NewRecorder(history.RecorderConfig{Repository: repo})
	require.NoError(t, err)

	return recorder, repo
}

func TestRecorderOpenClose(t *testing.T) {
	recorder, repo := newTestRecorder(t)
	ctx := context.Background()

	startedAt := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	err := recorder.Open(ctx, "t1", model.Execution{
		ID:        "run-1",
		Stage:     model.StageSpecification,
		StartedAt: startedAt,
		Model:     "anthropic/claude-sonnet",
		Log:       "t1-specification-20260830T100000Z.log",
	})
	require.NoError(t, err)

	task, err := repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, task.Executions, 1)
	assert.Equal(t, model.ExecutionStatusInProgress, task.Executions[0].Status)
	assert.Nil(t, task.Executions[0].CompletedAt)
	assert.Nil(t, task.Executions[0].DurationSeconds)

	completedAt := startedAt.Add(90 * time.Second)
	closed, err := recorder.Close(ctx, "t1", model.ExecutionStatusDone, completedAt)
	require.NoError(t, err)

	assert.Equal(t, "run-1", closed.ID)
	assert.Equal(t, model.ExecutionStatusDone, closed.Status)
	require.NotNil(t, closed.CompletedAt)
	assert.Equal(t, completedAt, closed.CompletedAt.UTC())
	require.NotNil(t, closed.DurationSeconds)
	assert.Equal(t, int64(90), *closed.DurationSeconds)

	// Completion is persisted, not just returned.
	task, err = repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, task.Executions, 1)
	assert.Equal(t, model.ExecutionStatusDone, task.Executions[0].Status)
	require.NotNil(t, task.Executions[0].DurationSeconds)
	assert.Equal(t, int64(90), *task.Executions[0].DurationSeconds)
}

func TestRecorderOpenConflictsWithOpenRecord(t *testing.T) {
	recorder, _ := newTestRecorder(t)
	ctx := context.Background()

	err := recorder.Open(ctx, "t1", model.Execution{ID: "run-1", StartedAt: time.Now().UTC()})
	require.NoError(t, err)

	err = recorder.Open(ctx, "t1", model.Execution{ID: "run-2", StartedAt: time.Now().UTC()})
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestRecorderCloseWithoutOpenRecord(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	closed, err := recorder.Close(context.Background(), "t1", model.ExecutionStatusDone, time.Now().UTC())
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Nil(t, closed)
}

func TestRecorderOpenMissingTask(t *testing.T) {
	recorder, _ := newTestRecorder(t)

	err := recorder.Open(context.Background(), "missing", model.Execution{ID: "run-1"})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecorderSequentialRuns(t *testing.T) {
	recorder, repo := newTestRecorder(t)
	ctx := context.Background()

	for i, id := range []string{"run-1", "run-2"} {
		startedAt := time.Date(2026, 8, 30, 10+i, 0, 0, 0, time.UTC)
		require.NoError(t, recorder.Open(ctx, "t1", model.Execution{ID: id, StartedAt: startedAt}))
		_, err := recorder.Close(ctx, "t1", model.ExecutionStatusFailed, startedAt.Add(time.Minute))
		require.NoError(t, err)
	}

	task, err := repo.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, task.Executions, 2)
	assert.Equal(t, "run-1", task.Executions[0].ID)
	assert.Equal(t, "run-2", task.Executions[1].ID)
}
