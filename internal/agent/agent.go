package agent

import (
	"context"
	"io"
	"os"
)

// Spec describes one agent process launch. The agent CLI contract is
// `<command> <model> run <prompt>` with cwd = workdir, exit 0 on success.
type Spec struct {
	// Command is the agent CLI binary.
	Command string
	// Model is the "provider/name" model reference passed to the CLI.
	Model string
	// Prompt is the resolved stage instruction.
	Prompt string
	// WorkDir is the workspace the agent runs in.
	WorkDir string
	// Env is extra environment passed to the process on top of the parent's.
	Env map[string]string
	// Output receives the process's interleaved stdout and stderr as it
	// arrives, with no intermediate buffering.
	Output io.Writer
}

// Process is a handle to a launched agent process.
type Process interface {
	// PID returns the OS process id.
	PID() int
	// Wait blocks until the process exits and returns its exit code. A
	// signal-terminated process reports a negative exit code.
	Wait() int
	// Signal delivers a termination signal to the process.
	Signal(sig os.Signal) error
	// Kill force-kills the process.
	Kill() error
}

// Runner launches external agent processes.
type Runner interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}
