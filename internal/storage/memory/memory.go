package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
)

// JournalConfig is the configuration for the memory run journal.
type JournalConfig struct {
	Logger log.Logger
}

func (c *JournalConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Journal is an in-memory implementation of storage.RunJournal, used in tests
// and ephemeral runs.
type Journal struct {
	runs   map[string]model.Run
	mu     sync.RWMutex
	logger log.Logger
}

// NewJournal creates a new memory run journal.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Journal{
		runs:   make(map[string]model.Run),
		logger: cfg.Logger,
	}, nil
}

// CreateRun inserts a new run.
func (j *Journal) CreateRun(ctx context.Context, r model.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.runs[r.ID]; ok {
		return fmt.Errorf("run with id %s: %w", r.ID, model.ErrConflict)
	}

	j.runs[r.ID] = r
	j.logger.Debugf("Created run in journal: %s", r.ID)

	return nil
}

// CloseRun marks a run as finished.
func (j *Journal) CloseRun(ctx context.Context, runID string, status model.RunStatus, finishedAt time.Time, exitCode int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	run, ok := j.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	run.Status = status
	run.FinishedAt = &finishedAt
	run.ExitCode = &exitCode
	j.runs[runID] = run

	return nil
}

// ListOpenRuns returns all runs still marked as running, ordered by start time.
func (j *Journal) ListOpenRuns(ctx context.Context) ([]model.Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var runs []model.Run
	for _, run := range j.runs {
		if run.Status == model.RunStatusRunning {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, k int) bool { return runs[i].StartedAt.Before(runs[k].StartedAt) })

	return runs, nil
}
