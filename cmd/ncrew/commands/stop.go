package commands

import (
	"context"
	"fmt"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/model"
)

type StopCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project string
	taskID  string
}

// NewStopCommand returns the stop command.
func NewStopCommand(rootCmd *RootCommand, app *kingpin.Application) *StopCommand {
	c := &StopCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stop", "Stop a task's active run.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Arg("task", "Task id.").Required().StringVar(&c.taskID)

	return c
}

func (c StopCommand) Name() string { return c.Cmd.FullCommand() }

// Run signals the task's active agent process. The supervising `run` process
// owns the handle and performs status reconciliation on exit, so from here the
// run is located through the journal and signaled by pid.
func (c StopCommand) Run(ctx context.Context) error {
	journal, err := newJournal(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not open run journal: %w", err)
	}
	defer journal.Close()

	open, err := journal.ListOpenRuns(ctx)
	if err != nil {
		return fmt.Errorf("could not list open runs: %w", err)
	}

	for _, run := range open {
		if run.ProjectID != c.project || run.TaskID != c.taskID {
			continue
		}

		if err := syscall.Kill(run.PID, syscall.SIGTERM); err != nil {
			return fmt.Errorf("could not signal agent process %d: %w", run.PID, err)
		}

		fmt.Fprintf(c.rootCmd.Stdout, "Stop signal sent to task %s (run %s, pid %d)\n", c.taskID, run.ID, run.PID)
		return nil
	}

	return fmt.Errorf("task %s is not running: %w", c.taskID, model.ErrNotFound)
}
