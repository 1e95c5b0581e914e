package commands

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/smart-tinker/ncrew/internal/agent/cli"
	"github.com/smart-tinker/ncrew/internal/app/reconcile"
	"github.com/smart-tinker/ncrew/internal/conventions"
	"github.com/smart-tinker/ncrew/internal/history"
	"github.com/smart-tinker/ncrew/internal/log"
	"github.com/smart-tinker/ncrew/internal/model"
	"github.com/smart-tinker/ncrew/internal/printer"
	"github.com/smart-tinker/ncrew/internal/storage"
	storageio "github.com/smart-tinker/ncrew/internal/storage/io"
	"github.com/smart-tinker/ncrew/internal/storage/sqlite"
	"github.com/smart-tinker/ncrew/internal/storage/taskfile"
	"github.com/smart-tinker/ncrew/internal/supervisor"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	Registry   string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory for run logs and the run journal.").Envar("NCREW_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("registry", "Path to the project registry YAML file.").Envar("NCREW_REGISTRY").Default(conventions.RegistryPath(defaultDataDir)).StringVar(&c.Registry)

	return c
}

// registryProjects resolves projects from the registry YAML file.
type registryProjects struct {
	repo *storageio.ProjectYAMLRepository
	path string
}

// GetProject implements reconcile.ProjectGetter.
func (r registryProjects) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return r.repo.GetProject(ctx, r.path, projectID)
}

func (r registryProjects) ListProjects(ctx context.Context) ([]model.Project, error) {
	return r.repo.ListProjects(ctx, r.path)
}

// newProjectRegistry returns the project registry loader. fs.FS paths cannot
// be absolute, so the loader is rooted at / and the registry path stripped.
func newProjectRegistry(root *RootCommand) (registryProjects, error) {
	path, err := filepath.Abs(root.Registry)
	if err != nil {
		return registryProjects{}, fmt.Errorf("could not resolve registry path: %w", err)
	}

	return registryProjects{
		repo: storageio.NewProjectYAMLRepository(rootFS()),
		path: strings.TrimPrefix(filepath.ToSlash(path), "/"),
	}, nil
}

func getProject(ctx context.Context, root *RootCommand, projectID string) (*model.Project, error) {
	registry, err := newProjectRegistry(root)
	if err != nil {
		return nil, err
	}

	project, err := registry.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("could not get project: %w", err)
	}

	return project, nil
}

// newTaskRepository returns the task document repository for a project.
func newTaskRepository(project model.Project, logger log.Logger) (storage.TaskRepository, error) {
	return taskfile.NewRepository(taskfile.RepositoryConfig{
		TasksDir: filepath.Join(project.Path, conventions.TasksDir),
		Logger:   logger,
	})
}

// newJournal returns the run journal stored in the data dir.
func newJournal(ctx context.Context, root *RootCommand) (*sqlite.Journal, error) {
	return sqlite.NewJournal(ctx, sqlite.JournalConfig{
		DBPath: conventions.DBPath(root.DataDir),
		Logger: root.Logger,
	})
}

// newSupervisor assembles the process supervisor on top of the given task
// repository and run journal.
func newSupervisor(root *RootCommand, repo storage.TaskRepository, journal storage.RunJournal) (*supervisor.Supervisor, error) {
	runner, err := cli.NewRunner(cli.RunnerConfig{Logger: root.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create agent runner: %w", err)
	}

	recorder, err := history.NewRecorder(history.RecorderConfig{
		Repository: repo,
		Logger:     root.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create execution recorder: %w", err)
	}

	return supervisor.New(supervisor.Config{
		Runner:     runner,
		Repository: repo,
		Recorder:   recorder,
		Journal:    journal,
		LogsDir:    filepath.Join(root.DataDir, conventions.LogsDir),
		Logger:     root.Logger,
	})
}

// newReconcileService wires the crash-recovery pass over the run journal.
func newReconcileService(root *RootCommand, journal storage.RunJournal) (*reconcile.Service, error) {
	registry, err := newProjectRegistry(root)
	if err != nil {
		return nil, err
	}

	return reconcile.NewService(reconcile.ServiceConfig{
		Journal:  journal,
		Projects: registry,
		Repositories: reconcile.TaskRepositoriesFunc(func(p model.Project) (storage.TaskRepository, error) {
			return newTaskRepository(p, root.Logger)
		}),
		Logger: root.Logger,
	})
}

func rootFS() fs.FS {
	return os.DirFS("/")
}

// newPrinter returns the output printer for the selected format.
func newPrinter(format string, out io.Writer) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(out)
	default: // table
		return printer.NewTablePrinter(out)
	}
}
