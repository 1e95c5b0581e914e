package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
)

const (
	defaultTTL       = 15 * time.Minute
	defaultCacheSize = 16
)

// Source lists the models available to a project's agent CLI.
type Source interface {
	ListModels(ctx context.Context, project model.Project) ([]model.ModelRef, error)
}

// ServiceConfig is the configuration for the model catalog service.
type ServiceConfig struct {
	Source Source
	// TTL is how long a harness's model listing stays cached.
	TTL       time.Duration
	CacheSize int
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Source == nil {
		return fmt.Errorf("source is required")
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "catalog.Service"})
	return nil
}

// Service is a TTL cache over the agent CLI's model listing. Listing models
// shells out to the external tool, so results are cached per agent command.
type Service struct {
	source Source
	cache  *expirable.LRU[string, []model.ModelRef]
	logger log.Logger
}

// NewService creates a new model catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		source: cfg.Source,
		cache:  expirable.NewLRU[string, []model.ModelRef](cfg.CacheSize, nil, cfg.TTL),
		logger: cfg.Logger,
	}, nil
}

// Models returns the models available to the project's agent, served from
// cache while fresh.
func (s *Service) Models(ctx context.Context, project model.Project) ([]model.ModelRef, error) {
	key := project.AgentCommand
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debugf("Model catalog cache hit for %s", key)
		return cached, nil
	}

	models, err := s.source.ListModels(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("could not list models: %w", err)
	}

	s.cache.Add(key, models)
	return models, nil
}

// CLISource lists models by running `<agent_command> models`.
type CLISource struct{}

// ListModels runs the agent CLI and parses one "provider/name" per line.
func (c CLISource) ListModels(ctx context.Context, project model.Project) ([]model.ModelRef, error) {
	cmd := exec.CommandContext(ctx, project.AgentCommand, "models")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("agent command %q not found in PATH: %w", project.AgentCommand, model.ErrExternalTool)
		}
		return nil, fmt.Errorf("agent models listing failed: %w: %s: %w", err, strings.TrimSpace(stderr.String()), model.ErrExternalTool)
	}

	var models []model.ModelRef
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ref, err := model.ParseModelRef(line)
		if err != nil {
			continue
		}
		models = append(models, ref)
	}

	return models, nil
}
