package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/smart-tinker/ncrew/internal/model"
)

// JSONPrinter prints task and run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskItem represents a task in JSON output.
type taskItem struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Stage      string            `json:"stage"`
	Status     string            `json:"status"`
	Priority   string            `json:"priority"`
	Model      string            `json:"model,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	Executions []model.Execution `json:"executions,omitempty"`
}

// runItem represents a journal run in JSON output.
type runItem struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	TaskID    string     `json:"task_id"`
	Stage     string     `json:"stage"`
	Status    string     `json:"status"`
	Branch    string     `json:"branch"`
	Workspace string     `json:"workspace"`
	Log       string     `json:"log"`
	PID       int        `json:"pid"`
	StartedAt time.Time  `json:"started_at"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
}

// PrintTaskList prints tasks as a JSON array.
func (p *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, newTaskItem(t))
	}
	return p.encode(items)
}

// PrintTaskStatus prints a single task as JSON.
func (p *JSONPrinter) PrintTaskStatus(task model.Task) error {
	return p.encode(newTaskItem(task))
}

// PrintRunList prints journal runs as a JSON array.
func (p *JSONPrinter) PrintRunList(runs []model.Run) error {
	items := make([]runItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, runItem{
			ID:        r.ID,
			ProjectID: r.ProjectID,
			TaskID:    r.TaskID,
			Stage:     string(r.Stage),
			Status:    string(r.Status),
			Branch:    r.Branch,
			Workspace: r.WorkspacePath,
			Log:       r.LogPath,
			PID:       r.PID,
			StartedAt: r.StartedAt,
			Finished:  r.FinishedAt,
			ExitCode:  r.ExitCode,
		})
	}
	return p.encode(items)
}

// PrintModelList prints model references as a JSON array of "provider/name".
func (p *JSONPrinter) PrintModelList(models []model.ModelRef) error {
	items := make([]string, 0, len(models))
	for _, m := range models {
		items = append(items, m.String())
	}
	return p.encode(items)
}

// PrintMessage prints a message object as JSON.
func (p *JSONPrinter) PrintMessage(msg string) error {
	return p.encode(map[string]string{"message": msg})
}

func newTaskItem(t model.Task) taskItem {
	return taskItem{
		ID:         t.ID,
		Title:      t.Title,
		Stage:      string(t.Stage),
		Status:     string(t.Status),
		Priority:   string(t.Priority),
		Model:      t.Model.String(),
		StartedAt:  t.StartedAt,
		Executions: t.Executions,
	}
}

func (p *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
