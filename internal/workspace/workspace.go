package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/smart-tinker/ncrew/internal/conventions"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
)

// ProvisionerConfig is the configuration for the workspace provisioner.
type ProvisionerConfig struct {
	Logger log.Logger
}

func (c *ProvisionerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "workspace.Provisioner"})
	return nil
}

// Provisioner creates isolated git worktrees for task runs. Every run gets a
// fresh worktree bound to a deterministic branch name; the provisioner never
// deletes worktrees (cleanup is left to external tooling).
type Provisioner struct {
	logger log.Logger
}

// NewProvisioner creates a new workspace provisioner.
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Provisioner{logger: cfg.Logger}, nil
}

// Workspace is an isolated, disposable git working copy bound to one task run.
type Workspace struct {
	BranchName string
	Path       string
}

// Provision creates a worktree and branch named prefix+taskID under the
// project's worktrees directory. It fails with model.ErrConflict when the
// branch or worktree path already exists, and model.ErrNotFound when the
// project root is not a git repository.
func (p *Provisioner) Provision(ctx context.Context, projectRoot, taskID, prefix string) (*Workspace, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if strings.ContainsAny(taskID, "/\\") || strings.Contains(taskID, "..") {
		return nil, fmt.Errorf("task id %q is not filesystem safe: %w", taskID, model.ErrNotValid)
	}

	branchName := prefix + taskID

	if err := p.verifyRepository(ctx, projectRoot); err != nil {
		return nil, err
	}

	exists, err := p.branchExists(ctx, projectRoot, branchName)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("branch %s already exists: %w", branchName, model.ErrConflict)
	}

	path := conventions.WorktreePath(projectRoot, branchName)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("worktree path %s already exists: %w", path, model.ErrConflict)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not stat worktree path: %w", err)
	}

	if _, err := runGit(ctx, projectRoot, "worktree", "add", "-b", branchName, path); err != nil {
		return nil, fmt.Errorf("could not create worktree: %w", err)
	}

	p.logger.Infof("Provisioned worktree %s on branch %s", path, branchName)

	return &Workspace{BranchName: branchName, Path: path}, nil
}

func (p *Provisioner) verifyRepository(ctx context.Context, projectRoot string) error {
	info, err := os.Stat(projectRoot)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory: %w", projectRoot, model.ErrNotFound)
	}

	out, err := runGit(ctx, projectRoot, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(out) != "true" {
		return fmt.Errorf("project root %s is not a git repository: %w", projectRoot, model.ErrNotFound)
	}

	return nil
}

func (p *Provisioner) branchExists(ctx context.Context, projectRoot, branch string) (bool, error) {
	_, err := runGit(ctx, projectRoot, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	if isExitStatus(err, 1) {
		return false, nil
	}
	return false, err
}

// runGit executes a git command in the given directory.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("git not found in PATH: %w", model.ErrExternalTool)
		}
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// isExitStatus reports whether the error is an exec.ExitError with the given status.
func isExitStatus(err error, status int) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	return exitErr.ExitCode() == status
}
