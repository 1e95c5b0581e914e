package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/app/taskget"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project string
	taskID  string
	format  string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Show a task's status and execution history.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Arg("task", "Task id.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	project, err := getProject(ctx, c.rootCmd, c.project)
	if err != nil {
		return err
	}

	repo, err := newTaskRepository(*project, logger)
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}

	svc, err := taskget.NewService(taskget.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Run(ctx, taskget.Request{TaskID: c.taskID})
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintTaskStatus(*task); err != nil {
		return fmt.Errorf("could not print task status: %w", err)
	}

	return nil
}
