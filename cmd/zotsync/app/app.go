// Package app provides the application context and dependency management
// for the zotsync CLI: configuration, logging, the repository and the
// lifecycle around one command invocation.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/espace/zotsync/internal/appcontext"
	"github.com/espace/zotsync/internal/cmd/output"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/records"
	zsync "github.com/espace/zotsync/pkg/sync"
)

// App represents the zotsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Repository (lazy-initialized, singleton)
	mu   sync.RWMutex
	repo records.Repository
	open func(context.Context, *Config) (records.Repository, error)
}

// Ensure App implements appcontext.Interface at compile time.
var _ appcontext.Interface = (*App)(nil)

// New creates a new App instance with the given version information.
// Configuration is loaded from files and the environment; flags are
// applied when a command runs.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		open:    openRepository,
	}

	config, err := LoadConfig(nil)
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the explicit format or the one suited to stdout.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// SyncOptions converts the configuration into sync options.
func (a *App) SyncOptions() []zsync.Option {
	c := a.config
	// Validate rejects bad policies before any command runs
	policy, _ := planner.ParsePolicy(c.Policy)
	return []zsync.Option{
		zsync.WithDryRun(c.DryRun),
		zsync.WithTagPrefix(c.TagPrefix),
		zsync.WithDelimiter(c.Delimiter),
		zsync.WithPageSize(c.PageSize),
		zsync.WithTimeout(c.Timeout),
		zsync.WithDedupe(c.Deduplicate),
		zsync.WithThreshold(c.Threshold),
		zsync.WithPolicy(policy),
	}
}

// Repository returns the configured repository, opening it on first use.
// This is thread-safe and ensures only one repository is opened.
func (a *App) Repository(ctx context.Context) (records.Repository, error) {
	a.mu.RLock()
	if a.repo != nil {
		repo := a.repo
		a.mu.RUnlock()
		return repo, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.repo != nil {
		return a.repo, nil
	}
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	repo, err := a.open(ctx, a.config)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("backend", a.config.Backend).
		Str("library_type", a.config.LibraryType).
		Str("library_id", a.config.LibraryID).
		Msg("Opened repository")
	a.repo = repo
	return repo, nil
}

// Shutdown releases the repository. It is safe to call more than once.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	repo := a.repo
	a.repo = nil
	a.mu.Unlock()

	if closer, ok := repo.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return errors.WrapResource("close", "repository", a.config.Backend, err)
		}
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithRepository sets a custom repository (useful for testing).
func WithRepository(repo records.Repository) Option {
	return func(a *App) error {
		a.repo = repo
		return nil
	}
}
