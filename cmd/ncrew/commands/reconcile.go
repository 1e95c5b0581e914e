package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type ReconcileCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewReconcileCommand returns the reconcile command.
func NewReconcileCommand(rootCmd *RootCommand, app *kingpin.Application) *ReconcileCommand {
	c := &ReconcileCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("reconcile", "Close runs orphaned by a crashed supervisor.")

	return c
}

func (c ReconcileCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReconcileCommand) Run(ctx context.Context) error {
	journal, err := newJournal(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not open run journal: %w", err)
	}
	defer journal.Close()

	svc, err := newReconcileService(c.rootCmd, journal)
	if err != nil {
		return fmt.Errorf("could not create reconcile service: %w", err)
	}

	report, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("could not reconcile: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Reconciled %d orphaned run(s), %d still alive\n",
		len(report.Interrupted), len(report.Alive))
	for _, run := range report.Interrupted {
		fmt.Fprintf(c.rootCmd.Stdout, "  %s: task %s marked interrupted\n", run.ID, run.TaskID)
	}

	return nil
}
