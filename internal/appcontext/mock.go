package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/sync"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	RepositoryFunc   func(context.Context) (records.Repository, error)
	SyncOptionsFunc  func() []sync.Option
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
}

// Repository returns a repository using the mock function or nil.
func (m *Mock) Repository(ctx context.Context) (records.Repository, error) {
	if m.RepositoryFunc != nil {
		return m.RepositoryFunc(ctx)
	}
	return nil, nil
}

// SyncOptions returns options using the mock function or none.
func (m *Mock) SyncOptions() []sync.Option {
	if m.SyncOptionsFunc != nil {
		return m.SyncOptionsFunc()
	}
	return nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "json".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
