package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type PsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewPsCommand returns the ps command.
func NewPsCommand(rootCmd *RootCommand, app *kingpin.Application) *PsCommand {
	c := &PsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("ps", "List active runs across all projects.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c PsCommand) Name() string { return c.Cmd.FullCommand() }

func (c PsCommand) Run(ctx context.Context) error {
	journal, err := newJournal(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not open run journal: %w", err)
	}
	defer journal.Close()

	runs, err := journal.ListOpenRuns(ctx)
	if err != nil {
		return fmt.Errorf("could not list open runs: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintRunList(runs); err != nil {
		return fmt.Errorf("could not print run list: %w", err)
	}

	return nil
}
