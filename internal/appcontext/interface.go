// Package appcontext provides the shared application context interface
// used by all commands, so command packages depend on an interface and
// not on the concrete App.
package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/sync"
)

// Interface defines what commands need from the application.
// The App struct from cmd/zotsync/app implements it; tests use Mock.
type Interface interface {
	// Repository opens the configured backend. It is opened once per
	// process; later calls return the same repository.
	Repository(ctx context.Context) (records.Repository, error)

	// SyncOptions returns the options resolved from config files, the
	// environment and global flags. Commands append their own.
	SyncOptions() []sync.Option

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, json, yaml, markdown).
	OutputFormat() string

	// Version returns the application version string.
	Version() string
}
