// Package zoterodb implements the record repository directly on a Zotero
// desktop database (zotero.sqlite). Zotero must not be running while
// records are written: it holds an exclusive lock on the file.
package zoterodb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
)

// Name is the backend name used in errors and logs.
const Name = "sqlite"

// Config selects the database file and library.
type Config struct {
	Path        string
	LibraryType records.LibraryType
	// LibraryID is the group id for group libraries; ignored for the
	// user library.
	LibraryID string
	ReadOnly  bool
	// Now is the clock used for modification timestamps.
	Now func() time.Time
}

// Repository reads and writes one library of a Zotero database.
type Repository struct {
	db        *sql.DB
	libraryID int64
	readOnly  bool
	now       func() time.Time
}

var _ records.Repository = (*Repository)(nil)

// Open opens the database and resolves the library.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	path, err := ExpandPath(cfg.Path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewBackendUnavailableError(Name, "open", errors.WrapIO("stat", path, err))
	}

	db, err := sql.Open("sqlite3", dsn(path, cfg.ReadOnly))
	if err != nil {
		return nil, errors.NewBackendUnavailableError(Name, "open", err)
	}
	// a single connection keeps busy_timeout and transactions on one handle
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewBackendUnavailableError(Name, "open", err)
	}

	r := &Repository{db: db, readOnly: cfg.ReadOnly, now: cfg.Now}
	if r.now == nil {
		r.now = time.Now
	}
	if r.libraryID, err = resolveLibrary(ctx, db, cfg.LibraryType, cfg.LibraryID); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.FromContext(ctx).Debug().
		Str("backend", Name).
		Str("path", path).
		Int64("library_id", r.libraryID).
		Bool("read_only", cfg.ReadOnly).
		Msg("Opened Zotero database")
	return r, nil
}

func dsn(path string, readOnly bool) string {
	params := fmt.Sprintf("_pragma=busy_timeout(%d)&_txlock=immediate", constants.SQLiteBusyTimeout.Milliseconds())
	if readOnly {
		params += "&mode=ro"
	}
	return "file:" + path + "?" + params
}

// ExpandPath resolves a leading ~ and defaults to the standard location.
func ExpandPath(path string) (string, error) {
	if path == "" {
		path = constants.DefaultSQLitePath
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.NewConfigError("sqlite", "cannot resolve home directory", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

func resolveLibrary(ctx context.Context, db *sql.DB, lt records.LibraryType, groupID string) (int64, error) {
	var id int64
	var err error
	if lt == records.LibraryGroup {
		err = db.QueryRowContext(ctx, `SELECT libraryID FROM groups WHERE groupID = ?`, groupID).Scan(&id)
	} else {
		err = db.QueryRowContext(ctx, `SELECT libraryID FROM libraries WHERE type = 'user' ORDER BY libraryID LIMIT 1`).Scan(&id)
	}
	switch {
	case err == sql.ErrNoRows:
		return 0, errors.NewNotFoundError("library", string(lt)+" "+groupID)
	case err != nil:
		return 0, errors.NewBackendUnavailableError(Name, "open", err)
	}
	return id, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Name returns the backend name.
func (r *Repository) Name() string { return Name }

// ListRecords implements records.Reader. Items come in the order they
// were added; trashed items, notes and attachments are left out.
func (r *Repository) ListRecords(ctx context.Context, filter records.Filter) (*records.Page, error) {
	limit := filter.PageSize()
	rowsRes, err := r.db.QueryContext(ctx, `
SELECT i.itemID
FROM items i
JOIN itemTypes t ON t.itemTypeID = i.itemTypeID
WHERE i.libraryID = ?
  AND t.typeName NOT IN ('attachment', 'note', 'annotation')
  AND i.itemID NOT IN (SELECT itemID FROM deletedItems)
ORDER BY i.dateAdded, i.itemID
LIMIT ? OFFSET ?`, r.libraryID, limit+1, filter.Start)
	if err != nil {
		return nil, r.unavailable("list", err)
	}
	var ids []int64
	for rowsRes.Next() {
		var id int64
		if err := rowsRes.Scan(&id); err != nil {
			_ = rowsRes.Close()
			return nil, r.unavailable("list", err)
		}
		ids = append(ids, id)
	}
	if err := rowsRes.Close(); err != nil {
		return nil, r.unavailable("list", err)
	}
	if err := rowsRes.Err(); err != nil {
		return nil, r.unavailable("list", err)
	}

	page := &records.Page{}
	if len(ids) > limit {
		ids = ids[:limit]
		page.More = true
	}
	page.Next = filter.Start + len(ids)

	for _, id := range ids {
		rec, err := loadRecord(ctx, r.db, id)
		if err != nil {
			return nil, r.unavailable("list", err)
		}
		if filter.Match(rec) {
			page.Records = append(page.Records, rec)
		}
	}
	return page, nil
}

// CreateRecord implements records.Writer.
func (r *Repository) CreateRecord(ctx context.Context, draft records.Draft) (records.Record, error) {
	if r.readOnly {
		return records.Record{}, errors.NewResourceError("create", "item", "", errors.ErrReadOnly)
	}
	var rec records.Record
	err := r.withTx(ctx, "create", func(tx *sql.Tx) error {
		id, err := insertItem(ctx, tx, r.libraryID, draft.Fields, r.now())
		if err != nil {
			return err
		}
		rec, err = loadRecord(ctx, tx, id)
		return err
	})
	return rec, err
}

// UpdateRecord implements records.Writer. The version token is the item's
// clientDateModified; a mismatch is a ConflictError.
func (r *Repository) UpdateRecord(ctx context.Context, id, version string, patch records.Patch) (records.Record, error) {
	if r.readOnly {
		return records.Record{}, errors.NewResourceError("update", "item", id, errors.ErrReadOnly)
	}
	var rec records.Record
	err := r.withTx(ctx, "update", func(tx *sql.Tx) error {
		itemID, current, err := r.lock(ctx, tx, id, version)
		if err != nil {
			return err
		}
		if err := applyPatch(ctx, tx, itemID, patch); err != nil {
			return err
		}
		if err := touch(ctx, tx, itemID, current, r.now()); err != nil {
			return err
		}
		rec, err = loadRecord(ctx, tx, itemID)
		return err
	})
	return rec, err
}

// DeleteRecord implements records.Writer by moving the item to the trash.
func (r *Repository) DeleteRecord(ctx context.Context, id, version string) error {
	if r.readOnly {
		return errors.NewResourceError("delete", "item", id, errors.ErrReadOnly)
	}
	return r.withTx(ctx, "delete", func(tx *sql.Tx) error {
		itemID, current, err := r.lock(ctx, tx, id, version)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO deletedItems (itemID) VALUES (?)`, itemID); err != nil {
			return err
		}
		return touch(ctx, tx, itemID, current, r.now())
	})
}

// lock loads the item row inside the write transaction and checks its version.
func (r *Repository) lock(ctx context.Context, tx *sql.Tx, key, version string) (int64, string, error) {
	var itemID int64
	var current string
	err := tx.QueryRowContext(ctx, `
SELECT itemID, CAST(clientDateModified AS TEXT) FROM items
WHERE key = ? AND libraryID = ? AND itemID NOT IN (SELECT itemID FROM deletedItems)`,
		key, r.libraryID).Scan(&itemID, &current)
	switch {
	case err == sql.ErrNoRows:
		return 0, "", errors.NewNotFoundError("item", key)
	case err != nil:
		return 0, "", err
	case current != version:
		return 0, "", errors.NewConflictError("item", key, version)
	}
	return itemID, current, nil
}

// withTx runs fn in a transaction. Conflicts, missing items and invalid
// input pass through; any other failure is a BackendUnavailableError.
func (r *Repository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if errors.IsConflict(err) || errors.IsNotFound(err) || errors.IsValidationError(err) || ctx.Err() != nil {
			return err
		}
		return r.unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return r.unavailable(op, err)
	}
	return nil
}

func (r *Repository) unavailable(op string, err error) error {
	if errors.IsBackendUnavailable(err) {
		return err
	}
	return errors.NewBackendUnavailableError(Name, op, err)
}
