package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage/sqlite/migrations"
)

// JournalConfig is the configuration for the SQLite run journal.
type JournalConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *JournalConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Journal is a SQLite implementation of storage.RunJournal.
type Journal struct {
	db     *sql.DB
	logger log.Logger
}

// NewJournal creates a new SQLite run journal.
func NewJournal(ctx context.Context, cfg JournalConfig) (*Journal, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := migrations.Up(db, cfg.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate run journal schema: %w", err)
	}

	cfg.Logger.Debugf("SQLite run journal initialized at %s", cfg.DBPath)

	return &Journal{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error { return j.db.Close() }

// CreateRun inserts a new run row.
func (j *Journal) CreateRun(ctx context.Context, r model.Run) error {
	query := `
		INSERT INTO runs (
			id, project_id, task_id, stage,
			branch, workspace_path, log_path, model,
			pid, status, started_at, finished_at, exit_code
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var finishedAt *int64
	if r.FinishedAt != nil {
		u := r.FinishedAt.Unix()
		finishedAt = &u
	}

	_, err := j.db.ExecContext(
		ctx,
		query,
		r.ID,
		r.ProjectID,
		r.TaskID,
		string(r.Stage),
		r.Branch,
		r.WorkspacePath,
		r.LogPath,
		r.Model,
		r.PID,
		string(r.Status),
		r.StartedAt.Unix(),
		finishedAt,
		r.ExitCode,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run already exists: %w", model.ErrConflict)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	j.logger.Debugf("Created run in journal: %s", r.ID)
	return nil
}

// CloseRun marks a run as finished with the given status and exit code.
func (j *Journal) CloseRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time, exitCode int) error {
	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, exit_code = ?
		WHERE id = ?
	`

	res, err := j.db.ExecContext(ctx, query, string(status), finishedAt.Unix(), exitCode, runID)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	j.logger.Debugf("Closed run in journal: %s (%s)", runID, status)
	return nil
}

// ListOpenRuns returns all runs still marked as running.
func (j *Journal) ListOpenRuns(ctx context.Context) ([]model.Run, error) {
	query := `
		SELECT
			id, project_id, task_id, stage,
			branch, workspace_path, log_path, model,
			pid, status, started_at, finished_at, exit_code
		FROM runs
		WHERE status = ?
		ORDER BY started_at
	`

	rows, err := j.db.QueryContext(ctx, query, string(model.RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate runs: %w", err)
	}

	return runs, nil
}

func scanRun(rows *sql.Rows) (*model.Run, error) {
	var (
		run        model.Run
		stage      string
		status     string
		startedAt  int64
		finishedAt sql.NullInt64
		exitCode   sql.NullInt64
	)

	err := rows.Scan(
		&run.ID,
		&run.ProjectID,
		&run.TaskID,
		&stage,
		&run.Branch,
		&run.WorkspacePath,
		&run.LogPath,
		&run.Model,
		&run.PID,
		&status,
		&startedAt,
		&finishedAt,
		&exitCode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not scan run: %w", err)
	}

	run.Stage = model.Stage(stage)
	run.Status = model.RunStatus(status)
	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}

	return &run, nil
}
