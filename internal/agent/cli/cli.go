package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/smart-tinker/ncrew/internal/agent"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
)

// RunnerConfig is the configuration for the CLI agent runner.
type RunnerConfig struct {
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.CLI"})
	return nil
}

// Runner launches the external coding-agent CLI as a subprocess.
type Runner struct {
	logger log.Logger
}

// NewRunner creates a new CLI agent runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{logger: cfg.Logger}, nil
}

// Start spawns `<command> <model> run <prompt>` with cwd = spec.WorkDir.
// Stdout and stderr are wired straight to spec.Output so no process output is
// lost on abrupt termination.
func (r *Runner) Start(ctx context.Context, spec agent.Spec) (agent.Process, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("agent command is required: %w", model.ErrNotValid)
	}
	if spec.WorkDir == "" {
		return nil, fmt.Errorf("workdir is required: %w", model.ErrNotValid)
	}

	cmd := exec.Command(spec.Command, spec.Model, "run", spec.Prompt)
	cmd.Dir = spec.WorkDir
	cmd.Stdout = spec.Output
	cmd.Stderr = spec.Output

	if len(spec.Env) > 0 {
		env := os.Environ()
		for k, v := range spec.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("agent command %q not found in PATH: %w", spec.Command, model.ErrExternalTool)
		}
		return nil, fmt.Errorf("could not start agent process: %w: %w", err, model.ErrExternalTool)
	}

	r.logger.Debugf("Started agent process %d in %s", cmd.Process.Pid, spec.WorkDir)

	return &process{cmd: cmd}, nil
}

type process struct {
	cmd *exec.Cmd
}

func (p *process) PID() int { return p.cmd.Process.Pid }

func (p *process) Wait() int {
	err := p.cmd.Wait()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

func (p *process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *process) Kill() error {
	return p.cmd.Process.Kill()
}
