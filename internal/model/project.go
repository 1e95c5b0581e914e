package model

import "fmt"

// Project is a registered project that owns tasks. The project registry is
// read-only input for the execution engine.
type Project struct {
	ID             string
	Path           string
	WorktreePrefix string
	DefaultModel   ModelRef
	AgentCommand   string
}

// Validate validates the project configuration.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project id is required: %w", ErrNotValid)
	}
	if p.Path == "" {
		return fmt.Errorf("project path is required: %w", ErrNotValid)
	}
	if p.WorktreePrefix == "" {
		return fmt.Errorf("project worktree prefix is required: %w", ErrNotValid)
	}
	if p.AgentCommand == "" {
		return fmt.Errorf("project agent command is required: %w", ErrNotValid)
	}
	return nil
}
