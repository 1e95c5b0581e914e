package fake

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/smart-tinker/ncrew/internal/agent"
)

// Runner is a fake agent.Runner for tests. Processes exit only when the test
// calls Exit (or automatically on Signal when ExitOnSignal is set).
type Runner struct {
	// StartErr makes Start fail when set.
	StartErr error
	// StartDelay makes Start take this long, widening the spawn window for
	// concurrency tests.
	StartDelay time.Duration
	// ExitOnSignal makes processes exit with ExitOnSignalCode when signalled.
	ExitOnSignal     bool
	ExitOnSignalCode int

	mu        sync.Mutex
	processes []*Process
	nextPID   int
}

// Start records the spec and returns a controllable fake process.
func (r *Runner) Start(ctx context.Context, spec agent.Spec) (agent.Process, error) {
	if r.StartDelay > 0 {
		time.Sleep(r.StartDelay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.StartErr != nil {
		return nil, r.StartErr
	}

	r.nextPID++
	p := &Process{
		Spec:             spec,
		pid:              40000 + r.nextPID,
		exitCh:           make(chan int, 1),
		exitOnSignal:     r.ExitOnSignal,
		exitOnSignalCode: r.ExitOnSignalCode,
	}
	r.processes = append(r.processes, p)

	return p, nil
}

// LastProcess returns the most recently started fake process.
func (r *Runner) LastProcess() *Process {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.processes) == 0 {
		return nil
	}
	return r.processes[len(r.processes)-1]
}

// StartedCount returns how many processes were started.
func (r *Runner) StartedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.processes)
}

// Process is a controllable fake agent process.
type Process struct {
	Spec agent.Spec

	pid              int
	exitCh           chan int
	exitOnSignal     bool
	exitOnSignalCode int

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
	exited  bool
}

func (p *Process) PID() int { return p.pid }

// Wait blocks until Exit is called and returns the exit code.
func (p *Process) Wait() int { return <-p.exitCh }

// Signal records the signal. With ExitOnSignal the process exits immediately.
func (p *Process) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	exitOnSignal := p.exitOnSignal
	p.mu.Unlock()

	if exitOnSignal {
		p.Exit(p.exitOnSignalCode)
	}
	return nil
}

// Kill records the kill and exits the process.
func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()

	p.Exit(-1)
	return nil
}

// Exit makes Wait return with the given code. Calling it twice is a no-op.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return
	}
	p.exited = true
	p.exitCh <- code
}

// Signals returns the signals delivered to the process.
func (p *Process) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]os.Signal(nil), p.signals...)
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.killed
}

// WriteOutput writes to the process's configured output writer, as the real
// agent would.
func (p *Process) WriteOutput(s string) error {
	if p.Spec.Output == nil {
		return fmt.Errorf("no output writer configured")
	}
	_, err := p.Spec.Output.Write([]byte(s))
	return err
}
