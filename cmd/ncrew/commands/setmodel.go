package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/app/modelset"
	"github.com/smart-tinker/ncrew/internal/model"
)

type SetModelCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project  string
	taskID   string
	modelRef string
	harness  string
}

// NewSetModelCommand returns the set-model command.
func NewSetModelCommand(rootCmd *RootCommand, app *kingpin.Application) *SetModelCommand {
	c := &SetModelCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("set-model", "Set the model used to run a task.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Arg("task", "Task id.").Required().StringVar(&c.taskID)
	c.Cmd.Arg("model", "Model reference (provider/name).").Required().StringVar(&c.modelRef)
	c.Cmd.Flag("harness", "Agent harness the model runs under.").StringVar(&c.harness)

	return c
}

func (c SetModelCommand) Name() string { return c.Cmd.FullCommand() }

func (c SetModelCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	ref, err := model.ParseModelRef(c.modelRef)
	if err != nil {
		return fmt.Errorf("invalid model reference: %w", err)
	}
	ref.Harness = c.harness

	project, err := getProject(ctx, c.rootCmd, c.project)
	if err != nil {
		return err
	}

	repo, err := newTaskRepository(*project, logger)
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}

	svc, err := modelset.NewService(modelset.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Run(ctx, modelset.Request{TaskID: c.taskID, Model: ref})
	if err != nil {
		return fmt.Errorf("could not set model: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s model set to %s\n", task.ID, task.Model)
	return nil
}
