package io_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-tinker/ncrew/internal/model"
	storageio "github.com/smart-tinker/ncrew/internal/storage/io"
)

const registryYAML = `projects:
  - id: webapp
    path: /work/webapp
    worktree_prefix: feature-
    default_model: anthropic/claude-sonnet
    harness: opencode
    agent_command: opencode
  - id: minimal
    path: /work/minimal
`

func newTestFS(content string) fstest.MapFS {
	return fstest.MapFS{
		"etc/ncrew/projects.yaml": &fstest.MapFile{Data: []byte(content)},
	}
}

func TestListProjects(t *testing.T) {
	repo := storageio.NewProjectYAMLRepository(newTestFS(registryYAML))

	projects, err := repo.ListProjects(context.Background(), "etc/ncrew/projects.yaml")
	require.NoError(t, err)
	require.Len(t, projects, 2)

	webapp := projects[0]
	assert.Equal(t, "webapp", webapp.ID)
	assert.Equal(t, "/work/webapp", webapp.Path)
	assert.Equal(t, "feature-", webapp.WorktreePrefix)
	assert.Equal(t, "opencode", webapp.AgentCommand)
	assert.Equal(t, "anthropic/claude-sonnet", webapp.DefaultModel.String())
	assert.Equal(t, "opencode", webapp.DefaultModel.Harness)

	// Optional fields fall back to defaults.
	minimal := projects[1]
	assert.Equal(t, "task-", minimal.WorktreePrefix)
	assert.Equal(t, "opencode", minimal.AgentCommand)
	assert.True(t, minimal.DefaultModel.IsZero())
}

func TestGetProject(t *testing.T) {
	repo := storageio.NewProjectYAMLRepository(newTestFS(registryYAML))

	project, err := repo.GetProject(context.Background(), "etc/ncrew/projects.yaml", "webapp")
	require.NoError(t, err)
	assert.Equal(t, "webapp", project.ID)
}

func TestGetProjectNotFound(t *testing.T) {
	repo := storageio.NewProjectYAMLRepository(newTestFS(registryYAML))

	_, err := repo.GetProject(context.Background(), "etc/ncrew/projects.yaml", "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListProjectsMissingFile(t *testing.T) {
	repo := storageio.NewProjectYAMLRepository(fstest.MapFS{})

	_, err := repo.ListProjects(context.Background(), "etc/ncrew/projects.yaml")
	require.Error(t, err)
}

func TestListProjectsInvalidModel(t *testing.T) {
	repo := storageio.NewProjectYAMLRepository(newTestFS(`projects:
  - id: broken
    path: /work/broken
    default_model: not-a-ref
`))

	_, err := repo.ListProjects(context.Background(), "etc/ncrew/projects.yaml")
	require.ErrorIs(t, err, model.ErrNotValid)
}
