package records

import (
	"context"
	"strings"

	"github.com/espace/zotsync/pkg/constants"
)

// Filter selects records and the page to return.
type Filter struct {
	// TagPrefix keeps only records carrying a tag with this prefix (case-insensitive).
	TagPrefix string
	// Start is the zero-based offset of the page.
	Start int
	// Limit is the page size; zero means the backend default.
	Limit int
}

// Match reports whether the record passes the filter's selection criteria.
func (f Filter) Match(r Record) bool {
	if f.TagPrefix == "" {
		return true
	}
	return r.HasTagPrefix(f.TagPrefix)
}

// PageSize returns the effective limit.
func (f Filter) PageSize() int {
	if f.Limit <= 0 {
		return constants.DefaultPageSize
	}
	return f.Limit
}

// Page is one batch of records.
type Page struct {
	Records []Record
	// Next is the Start of the following page; meaningful only when More is true.
	Next int
	More bool
}

// Reader lists records.
// Ordering must be stable across calls within one session.
type Reader interface {
	ListRecords(ctx context.Context, filter Filter) (*Page, error)
}

// Writer mutates records.
// UpdateRecord and DeleteRecord return an error matching errors.ErrConflict
// when version is stale.
type Writer interface {
	CreateRecord(ctx context.Context, draft Draft) (Record, error)
	UpdateRecord(ctx context.Context, id, version string, patch Patch) (Record, error)
	DeleteRecord(ctx context.Context, id, version string) error
}

// Repository is the capability set every backend implements.
type Repository interface {
	Reader
	Writer
}

// ListAll drains every page in order.
func ListAll(ctx context.Context, r Reader, filter Filter) ([]Record, error) {
	var all []Record
	filter.Start = 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := r.ListRecords(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if !page.More || page.Next <= filter.Start {
			return all, nil
		}
		filter.Start = page.Next
	}
}

// LibraryType is either a personal or a group library.
type LibraryType string

const (
	// LibraryUser is a personal library.
	LibraryUser LibraryType = "user"
	// LibraryGroup is a group library.
	LibraryGroup LibraryType = "group"
)

// ParseLibraryType accepts user|group and the plural forms used in Zotero URLs.
func ParseLibraryType(s string) (LibraryType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "users", "":
		return LibraryUser, true
	case "group", "groups":
		return LibraryGroup, true
	}
	return "", false
}

// Plural returns the URL path segment (users, groups).
func (t LibraryType) Plural() string {
	return string(t) + "s"
}
