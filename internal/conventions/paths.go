package conventions

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/smart-tinker/ncrew/internal/model"
)

const (
	// DefaultDataDir is the default ncrew data directory name (relative to home).
	DefaultDataDir = ".ncrew"
	// LogsDir is the subdirectory for run logs inside the data dir.
	LogsDir = "logs"
	// DBFile is the run journal database filename inside the data dir.
	DBFile = "ncrew.db"
	// RegistryFile is the default project registry filename inside the data dir.
	RegistryFile = "projects.yaml"

	// Project-level directories.

	// TasksDir is the subdirectory of a project holding task documents.
	TasksDir = "tasks"
	// PromptsDir is the subdirectory of a project holding stage prompt templates.
	PromptsDir = "prompts"
	// WorktreesDir is the subdirectory of a project holding run worktrees.
	WorktreesDir = "worktrees"

	// logTimestampLayout is the start-timestamp format embedded in log names.
	logTimestampLayout = "20060102T150405Z"
)

// DBPath returns the run journal database path.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// RegistryPath returns the default project registry path.
func RegistryPath(dataDir string) string {
	return filepath.Join(dataDir, RegistryFile)
}

// TaskFilePath returns the task document path for a task in a project.
func TaskFilePath(projectPath, taskID string) string {
	return filepath.Join(projectPath, TasksDir, taskID+".md")
}

// TaskFileRelPath returns the project-relative task document path.
func TaskFileRelPath(taskID string) string {
	return filepath.Join(TasksDir, taskID+".md")
}

// StagePromptPath returns the prompt template path for a stage in a project.
func StagePromptPath(projectPath string, stage model.Stage) string {
	return filepath.Join(projectPath, PromptsDir, string(stage)+".md")
}

// WorktreePath returns the worktree path for a branch in a project.
func WorktreePath(projectPath, branchName string) string {
	return filepath.Join(projectPath, WorktreesDir, branchName)
}

// LogFileName returns the deterministic log artifact name for a run.
func LogFileName(taskID string, stage model.Stage, startedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s.log", taskID, stage, startedAt.UTC().Format(logTimestampLayout))
}

// LogFilePath returns the full log artifact path for a run.
func LogFilePath(dataDir, taskID string, stage model.Stage, startedAt time.Time) string {
	return filepath.Join(dataDir, LogsDir, LogFileName(taskID, stage, startedAt))
}
