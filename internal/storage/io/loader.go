package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/smart-tinker/ncrew/internal/model"
)

// ProjectYAMLRepository loads the project registry from a YAML file. The
// registry is read-only input for the execution engine.
type ProjectYAMLRepository struct {
	fs fs.FS
}

// NewProjectYAMLRepository creates a new YAML project registry repository.
func NewProjectYAMLRepository(filesystem fs.FS) *ProjectYAMLRepository {
	return &ProjectYAMLRepository{fs: filesystem}
}

// GetProject loads the registry file at path and returns the project with the
// given id.
func (r *ProjectYAMLRepository) GetProject(ctx context.Context, path, projectID string) (*model.Project, error) {
	projects, err := r.ListProjects(ctx, path)
	if err != nil {
		return nil, err
	}

	for _, p := range projects {
		if p.ID == projectID {
			project := p
			return &project, nil
		}
	}

	return nil, fmt.Errorf("project %s: %w", projectID, model.ErrNotFound)
}

// ListProjects loads all projects from the registry file at path.
func (r *ProjectYAMLRepository) ListProjects(ctx context.Context, path string) ([]model.Project, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var registry registryFile
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	projects := make([]model.Project, 0, len(registry.Projects))
	for _, p := range registry.Projects {
		mp, err := p.toModel()
		if err != nil {
			return nil, fmt.Errorf("invalid project %q: %w", p.ID, err)
		}
		projects = append(projects, mp)
	}

	return projects, nil
}

// registryFile represents the YAML structure of the project registry.
type registryFile struct {
	Projects []projectConfig `yaml:"projects"`
}

// projectConfig represents the YAML structure of one project entry.
type projectConfig struct {
	ID             string `yaml:"id"`
	Path           string `yaml:"path"`
	WorktreePrefix string `yaml:"worktree_prefix"`
	DefaultModel   string `yaml:"default_model"`
	Harness        string `yaml:"harness"`
	AgentCommand   string `yaml:"agent_command"`
}

func (p projectConfig) toModel() (model.Project, error) {
	project := model.Project{
		ID:             p.ID,
		Path:           p.Path,
		WorktreePrefix: p.WorktreePrefix,
		AgentCommand:   p.AgentCommand,
	}

	if p.WorktreePrefix == "" {
		project.WorktreePrefix = "task-"
	}
	if p.AgentCommand == "" {
		project.AgentCommand = "opencode"
	}

	if p.DefaultModel != "" {
		ref, err := model.ParseModelRef(p.DefaultModel)
		if err != nil {
			return model.Project{}, err
		}
		ref.Harness = p.Harness
		project.DefaultModel = ref
	}

	if err := project.Validate(); err != nil {
		return model.Project{}, err
	}

	return project, nil
}
