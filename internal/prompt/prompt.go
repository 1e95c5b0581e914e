package prompt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/smart-tinker/ncrew/internal/conventions"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
)

// defaultTemplate is the instruction used when a project has no template for
// the stage. Agent execution is never blocked by a missing template.
const defaultTemplate = "Work on the ${STAGE} stage of the task described in ${TASK_FILE}. " +
	"Read the task document, do the work for this stage, and update the document with your results."

// Vars are the concrete values substituted into stage prompt templates.
// Placeholders without a matching variable are left verbatim.
type Vars struct {
	// TaskFile is the project-relative path of the task document.
	TaskFile string
	// Branch is the run's worktree branch name.
	Branch string
}

// ResolverConfig is the configuration for the stage prompt resolver.
type ResolverConfig struct {
	Logger log.Logger
}

func (c *ResolverConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "prompt.Resolver"})
	return nil
}

// Resolver resolves the instructional prompt for a task's current stage from
// the project's per-stage template files, falling back to a default.
type Resolver struct {
	logger log.Logger
}

// NewResolver creates a new stage prompt resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Resolver{logger: cfg.Logger}, nil
}

// Resolve returns the instruction for the given stage. Template read errors
// degrade gracefully to the default instruction.
func (r *Resolver) Resolve(ctx context.Context, projectPath string, stage model.Stage, vars Vars) string {
	template := defaultTemplate

	path := conventions.StagePromptPath(projectPath, stage)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		template = string(data)
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debugf("No prompt template for stage %s, using default", stage)
	default:
		r.logger.Warningf("Could not read prompt template %s, using default: %v", path, err)
	}

	return substitute(template, stage, vars)
}

// substitute replaces known placeholders; unknown ones stay verbatim.
func substitute(template string, stage model.Stage, vars Vars) string {
	return strings.NewReplacer(
		"${TASK_FILE}", vars.TaskFile,
		"${STAGE}", string(stage),
		"${BRANCH}", vars.Branch,
	).Replace(template)
}
