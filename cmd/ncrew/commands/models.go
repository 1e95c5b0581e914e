package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/catalog"
)

type ModelsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project string
	format  string
}

// NewModelsCommand returns the models command.
func NewModelsCommand(rootCmd *RootCommand, app *kingpin.Application) *ModelsCommand {
	c := &ModelsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("models", "List the models available to a project's agent.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ModelsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ModelsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	project, err := getProject(ctx, c.rootCmd, c.project)
	if err != nil {
		return err
	}

	svc, err := catalog.NewService(catalog.ServiceConfig{
		Source: catalog.CLISource{},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	models, err := svc.Models(ctx, *project)
	if err != nil {
		return fmt.Errorf("could not list models: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintModelList(models); err != nil {
		return fmt.Errorf("could not print model list: %w", err)
	}

	return nil
}
