package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/app/stageadvance"
)

type AdvanceCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project string
	taskID  string
}

// NewAdvanceCommand returns the advance command.
func NewAdvanceCommand(rootCmd *RootCommand, app *kingpin.Application) *AdvanceCommand {
	c := &AdvanceCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("advance", "Advance a completed task to the next workflow stage.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Arg("task", "Task id.").Required().StringVar(&c.taskID)

	return c
}

func (c AdvanceCommand) Name() string { return c.Cmd.FullCommand() }

func (c AdvanceCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	project, err := getProject(ctx, c.rootCmd, c.project)
	if err != nil {
		return err
	}

	repo, err := newTaskRepository(*project, logger)
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}

	svc, err := stageadvance.NewService(stageadvance.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Run(ctx, stageadvance.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not advance task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s advanced to stage %s\n", task.ID, task.Stage)
	return nil
}
