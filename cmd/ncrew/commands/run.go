package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/smart-tinker/ncrew/internal/app/taskrun"
	"github.com/smart-tinker/ncrew/internal/app/taskstop"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/prompt"
	"github.com/smart-tinker/ncrew/internal/utils/env"
	"github.com/smart-tinker/ncrew/internal/workspace"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	project  string
	taskID   string
	modelRef string
	envSpecs []string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the agent for a task's current stage and supervise it until it exits.")
	c.Cmd.Arg("project", "Project id from the registry.").Required().StringVar(&c.project)
	c.Cmd.Arg("task", "Task id.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("model", "Model reference (provider/name), overrides the task and project defaults.").Short('m').StringVar(&c.modelRef)
	c.Cmd.Flag("env", "Environment variable for the agent process (KEY=value, or KEY to inherit). Repeatable.").Short('e').StringsVar(&c.envSpecs)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	project, err := getProject(ctx, c.rootCmd, c.project)
	if err != nil {
		return err
	}

	var modelRef model.ModelRef
	if c.modelRef != "" {
		modelRef, err = model.ParseModelRef(c.modelRef)
		if err != nil {
			return fmt.Errorf("invalid model reference: %w", err)
		}
	}

	agentEnv, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env flag: %w", err)
	}

	repo, err := newTaskRepository(*project, logger)
	if err != nil {
		return fmt.Errorf("could not create task repository: %w", err)
	}

	journal, err := newJournal(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not open run journal: %w", err)
	}
	defer journal.Close()

	// Close any run orphaned by a previous crash before starting a new one.
	reconciler, err := newReconcileService(c.rootCmd, journal)
	if err != nil {
		return fmt.Errorf("could not create reconcile service: %w", err)
	}
	if _, err := reconciler.Run(ctx); err != nil {
		return fmt.Errorf("could not reconcile orphaned runs: %w", err)
	}

	sup, err := newSupervisor(c.rootCmd, repo, journal)
	if err != nil {
		return fmt.Errorf("could not create supervisor: %w", err)
	}

	provisioner, err := workspace.NewProvisioner(workspace.ProvisionerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create workspace provisioner: %w", err)
	}

	prompts, err := prompt.NewResolver(prompt.ResolverConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create prompt resolver: %w", err)
	}

	svc, err := taskrun.NewService(taskrun.ServiceConfig{
		Repository:  repo,
		Provisioner: provisioner,
		Prompts:     prompts,
		Supervisor:  sup,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	handle, err := svc.Run(ctx, taskrun.Request{
		Project: *project,
		TaskID:  c.taskID,
		Model:   modelRef,
		Env:     agentEnv,
	})
	if err != nil {
		return fmt.Errorf("could not run task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s running (pid %d)\n", c.taskID, handle.PID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Branch:    %s\n", handle.Branch)
	fmt.Fprintf(c.rootCmd.Stdout, "  Workspace: %s\n", handle.WorkspacePath)
	fmt.Fprintf(c.rootCmd.Stdout, "  Log:       %s\n", handle.LogPath)

	// Supervise until the agent exits. A termination signal stops the run
	// gracefully and still waits for reconciliation.
	select {
	case <-handle.Done():
	case <-ctx.Done():
		logger.Infof("Termination requested, stopping task %s", c.taskID)

		stopSvc, err := taskstop.NewService(taskstop.ServiceConfig{
			Repository: repo,
			Supervisor: sup,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("could not create stop service: %w", err)
		}

		// The command context is already cancelled, stop on a fresh one.
		if _, err := stopSvc.Run(context.Background(), taskstop.Request{TaskID: c.taskID}); err != nil {
			return fmt.Errorf("could not stop run: %w", err)
		}
	}

	status, exitCode := handle.Result()
	fmt.Fprintf(c.rootCmd.Stdout, "Task %s finished: %s\n", c.taskID, status)

	if status != model.TaskStatusDone {
		return fmt.Errorf("agent exited with code %d (status %s)", exitCode, status)
	}

	return nil
}
