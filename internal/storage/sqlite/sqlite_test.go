package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage/sqlite"
)

func newTestJournal(t *testing.T) *sqlite.Journal {
	t.Helper()

	journal, err := sqlite.NewJournal(context.Background(), sqlite.JournalConfig{
		DBPath: filepath.Join(t.TempDir(), "ncrew.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	return journal
}

func runFixture(id string, startedAt time.Time) model.Run {
	return model.Run{
		ID:            id,
		ProjectID:     "proj",
		TaskID:        "t1",
		Stage:         model.StageImplementation,
		Branch:        "task-t1",
		WorkspacePath: "/work/proj/worktrees/task-t1",
		LogPath:       "/data/logs/t1-implementation-20260830T100000Z.log",
		Model:         "anthropic/claude-sonnet",
		PID:           4242,
		Status:        model.RunStatusRunning,
		StartedAt:     startedAt,
	}
}

func TestJournalCreateAndListOpenRuns(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, journal.CreateRun(ctx, runFixture("run-2", now)))
	require.NoError(t, journal.CreateRun(ctx, runFixture("run-1", now.Add(-time.Hour))))

	open, err := journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)

	// Oldest first.
	assert.Equal(t, "run-1", open[0].ID)
	assert.Equal(t, "run-2", open[1].ID)

	got := open[1]
	assert.Equal(t, "proj", got.ProjectID)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, model.StageImplementation, got.Stage)
	assert.Equal(t, "task-t1", got.Branch)
	assert.Equal(t, 4242, got.PID)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ExitCode)
}

func TestJournalCreateRunConflict(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, journal.CreateRun(ctx, runFixture("run-1", now)))

	err := journal.CreateRun(ctx, runFixture("run-1", now))
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestJournalCloseRun(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, journal.CreateRun(ctx, runFixture("run-1", time.Now().UTC())))

	finishedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, journal.CloseRun(ctx, "run-1", model.RunStatusInterrupted, finishedAt, -1))

	open, err := journal.ListOpenRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestJournalCloseRunNotFound(t *testing.T) {
	journal := newTestJournal(t)

	err := journal.CloseRun(context.Background(), "missing", model.RunStatusDone, time.Now().UTC(), 0)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestJournalSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ncrew.db")
	ctx := context.Background()

	journal, err := sqlite.NewJournal(ctx, sqlite.JournalConfig{DBPath: dbPath})
	require.NoError(t, err)
	require.NoError(t, journal.CreateRun(ctx, runFixture("run-1", time.Now().UTC())))
	require.NoError(t, journal.Close())

	// A fresh process sees the open run, the crash-recovery precondition.
	reopened, err := sqlite.NewJournal(ctx, sqlite.JournalConfig{DBPath: dbPath})
	require.NoError(t, err)
	defer reopened.Close()

	open, err := reopened.ListOpenRuns(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "run-1", open[0].ID)
}
