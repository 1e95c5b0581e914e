package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smart-tinker/ncrew/internal/model"
)

// TablePrinter prints task and run information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tSTAGE\tSTATUS\tPRIORITY\tMODEL")

	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ID, task.Title, task.Stage, task.Status, task.Priority, task.Model)
	}

	return nil
}

// PrintTaskStatus prints detailed task status including execution history.
func (t *TablePrinter) PrintTaskStatus(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:        %s\n", task.ID)
	fmt.Fprintf(t.writer, "Title:     %s\n", task.Title)
	fmt.Fprintf(t.writer, "Stage:     %s\n", task.Stage)
	fmt.Fprintf(t.writer, "Status:    %s\n", task.Status)
	fmt.Fprintf(t.writer, "Priority:  %s\n", task.Priority)

	if !task.Model.IsZero() {
		fmt.Fprintf(t.writer, "Model:     %s\n", task.Model)
	}
	if task.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:   %s\n", FormatTimestamp(*task.StartedAt))
	}

	if len(task.Executions) == 0 {
		return nil
	}

	fmt.Fprintf(t.writer, "\nExecutions:\n")

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STAGE\tSTATUS\tSTARTED\tDURATION\tMODEL\tLOG")
	for _, e := range task.Executions {
		duration := "-"
		if e.DurationSeconds != nil {
			duration = fmt.Sprintf("%ds", *e.DurationSeconds)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Stage, e.Status, FormatTimestamp(e.StartedAt), duration, e.Model, e.Log)
	}

	return nil
}

// PrintRunList prints journal runs in a table format.
func (t *TablePrinter) PrintRunList(runs []model.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "RUN\tPROJECT\tTASK\tSTAGE\tSTATUS\tPID\tSTARTED")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.ProjectID, r.TaskID, r.Stage, r.Status, r.PID, TimeAgo(r.StartedAt))
	}

	return nil
}

// PrintModelList prints model references in a table format.
func (t *TablePrinter) PrintModelList(models []model.ModelRef) error {
	if len(models) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "PROVIDER\tNAME")

	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\n", m.Provider, m.Name)
	}

	return nil
}

// PrintMessage prints a plain message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}
