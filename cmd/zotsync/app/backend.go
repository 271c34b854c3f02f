package app

import (
	"context"
	"net/http"

	"github.com/espace/zotsync/internal/backends/zoteroapi"
	"github.com/espace/zotsync/internal/backends/zoterodb"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
)

// openRepository builds the repository selected by config.Backend.
// The SQLite database is opened read-only for dry runs.
func openRepository(ctx context.Context, config *Config) (records.Repository, error) {
	api := zoteroapi.Config{
		BaseURL:     config.APIURL,
		LibraryType: config.libraryType(),
		LibraryID:   config.LibraryID,
		APIKey:      config.APIKey,
		AuthScheme:  config.AuthScheme,
		HTTPClient:  &http.Client{Timeout: constants.DefaultHTTPTimeout},
	}

	switch config.Backend {
	case BackendAPI:
		repo, err := zoteroapi.New(api)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case BackendLocal:
		repo, err := zoteroapi.NewLocal(api)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case BackendSQLite:
		repo, err := zoterodb.Open(ctx, zoterodb.Config{
			Path:        config.DBPath,
			LibraryType: config.libraryType(),
			LibraryID:   config.LibraryID,
			ReadOnly:    config.DryRun,
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, errors.NewValidationError("backend", config.Backend, "must be one of: api, local, sqlite")
	}
}
