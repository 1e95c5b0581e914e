package taskfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/storage"
)

// Metadata block keys recognized by the repository. Unknown keys are
// preserved verbatim across updates.
const (
	keyTitle      = "title"
	keyStatus     = "status"
	keyStage      = "stage"
	keyPriority   = "priority"
	keyModel      = "model"
	keyHarness    = "harness"
	keyStartedAt  = "started_at"
	keyExecutions = "executions"
)

const taskFileMode = 0644

// RepositoryConfig is the configuration for the task file repository.
type RepositoryConfig struct {
	// TasksDir is the directory holding the project's task documents.
	TasksDir string
	Logger   log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.TasksDir == "" {
		return fmt.Errorf("tasks dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskFile"})
	return nil
}

// Repository is a file-backed implementation of storage.TaskRepository. Task
// metadata lives in a delimited block at the top of each task document; the
// document itself is the single source of truth for status, stage and
// execution history.
type Repository struct {
	tasksDir string
	logger   log.Logger
}

// NewRepository creates a new task file repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasksDir: cfg.TasksDir,
		logger:   cfg.Logger,
	}, nil
}

func (r *Repository) taskPath(taskID string) string {
	return filepath.Join(r.tasksDir, taskID+".md")
}

// GetTask loads a task from its document. Parsing is tolerant: a missing or
// malformed metadata block yields defaults, never an error. Only a missing
// file or an unreadable one fails.
func (r *Repository) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	raw, err := os.ReadFile(r.taskPath(taskID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read task document: %w", err)
	}

	doc := ParseDocument(string(raw))
	task := r.taskFromDocument(taskID, doc)
	return task, nil
}

// UpdateTask merges the given fields into the task document: known keys are
// replaced in place, unknown keys and the body are untouched, and new keys
// are appended to the metadata block.
func (r *Repository) UpdateTask(ctx context.Context, taskID string, update storage.TaskUpdate) error {
	path := r.taskPath(taskID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
		}
		return fmt.Errorf("could not read task document: %w", err)
	}

	doc := ParseDocument(string(raw))

	if update.Title != nil {
		doc.Set(keyTitle, *update.Title)
	}
	if update.Status != nil {
		doc.Set(keyStatus, string(*update.Status))
	}
	if update.Stage != nil {
		doc.Set(keyStage, string(*update.Stage))
	}
	if update.Priority != nil {
		doc.Set(keyPriority, string(*update.Priority))
	}
	if update.Model != nil {
		doc.Set(keyModel, update.Model.String())
		if update.Model.Harness != "" {
			doc.Set(keyHarness, update.Model.Harness)
		} else {
			// A model change must not inherit the previous model's harness.
			doc.Remove(keyHarness)
		}
	}
	if update.StartedAt != nil {
		doc.Set(keyStartedAt, update.StartedAt.UTC().Format(time.RFC3339))
	}
	if update.Executions != nil {
		encoded, err := encodeExecutions(*update.Executions)
		if err != nil {
			return fmt.Errorf("could not encode executions: %w", err)
		}
		doc.Set(keyExecutions, encoded)
	}

	if err := os.WriteFile(path, []byte(doc.Encode()), taskFileMode); err != nil {
		return fmt.Errorf("could not write task document: %w", err)
	}

	r.logger.Debugf("Updated task document: %s", taskID)
	return nil
}

// ListTasks returns all tasks found in the tasks directory.
func (r *Repository) ListTasks(ctx context.Context) ([]model.Task, error) {
	entries, err := os.ReadDir(r.tasksDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read tasks directory: %w", err)
	}

	tasks := make([]model.Task, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		taskID := strings.TrimSuffix(entry.Name(), ".md")
		task, err := r.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, nil
}

// taskFromDocument maps a parsed document to the typed task model, applying
// defaults for absent or unparseable fields.
func (r *Repository) taskFromDocument(taskID string, doc Document) *model.Task {
	task := &model.Task{
		ID:       taskID,
		Status:   model.TaskStatusNew,
		Stage:    model.StageSpecification,
		Priority: model.TaskPriorityMedium,
	}

	if v, ok := doc.Get(keyTitle); ok {
		task.Title = v
	}
	if v, ok := doc.Get(keyStatus); ok && v != "" {
		task.Status = model.TaskStatus(strings.ToLower(v))
	}
	if v, ok := doc.Get(keyStage); ok {
		stage, err := model.ParseStage(v)
		if err != nil {
			r.logger.Warningf("Task %s has unknown stage %q, using default", taskID, v)
		} else {
			task.Stage = stage
		}
	}
	if v, ok := doc.Get(keyPriority); ok && v != "" {
		task.Priority = model.TaskPriority(strings.ToLower(v))
	}
	if v, ok := doc.Get(keyModel); ok && v != "" {
		ref, err := model.ParseModelRef(v)
		if err != nil {
			r.logger.Warningf("Task %s has invalid model reference %q, ignoring", taskID, v)
		} else {
			task.Model = ref
		}
	}
	if v, ok := doc.Get(keyHarness); ok {
		task.Model.Harness = v
	}
	if v, ok := doc.Get(keyStartedAt); ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			r.logger.Warningf("Task %s has invalid started_at %q, ignoring", taskID, v)
		} else {
			task.StartedAt = &t
		}
	}
	if v, ok := doc.Get(keyExecutions); ok && v != "" {
		executions, err := decodeExecutions(v)
		if err != nil {
			r.logger.Warningf("Task %s has invalid executions list, ignoring: %v", taskID, err)
		} else {
			task.Executions = executions
		}
	}

	return task
}

// encodeExecutions serializes execution records as a compact single-line JSON
// array so the list fits a single metadata line.
func encodeExecutions(executions []model.Execution) (string, error) {
	data, err := json.Marshal(executions)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeExecutions(raw string) ([]model.Execution, error) {
	var executions []model.Execution
	if err := json.Unmarshal([]byte(raw), &executions); err != nil {
		return nil, err
	}
	return executions, nil
}
