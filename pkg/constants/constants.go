// Package constants provides shared constants used throughout the zotsync codebase.
// This includes timeouts, limits, file permissions, and the defaults that
// configuration falls back to when nothing else is set.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the Zotero API
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds graceful shutdown after a failed command
	ShutdownTimeout = 5 * time.Second

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second

	// SQLiteBusyTimeout is how long SQLite waits on a locked database
	SQLiteBusyTimeout = 10 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for transient failures
	MaxRetries = 3

	// DefaultPageSize is the default number of records fetched per page
	DefaultPageSize = 100

	// MaxPageSize is the largest page the Zotero Web API serves
	MaxPageSize = 100
)

// Logging constants
const (
	// LogRotationSizeMB is the maximum size of a log file before rotation
	LogRotationSizeMB = 10

	// LogRotationAgeDays is the maximum age of rotated log files
	LogRotationAgeDays = 7

	// LogRotationBackups is the maximum number of old log files to retain
	LogRotationBackups = 5
)

// Default values
const (
	// DefaultTagPrefix marks review-status tags
	DefaultTagPrefix = "review:"

	// DefaultThreshold is the default fuzzy similarity threshold for clean
	DefaultThreshold = 90

	// DefaultDelimiter joins authors and tags inside a single cell
	DefaultDelimiter = "; "

	// DefaultPolicy is the default canonical-record selection order
	DefaultPolicy = "doi,completeness,oldest"

	// DefaultLibraryType is used when no library type is configured
	DefaultLibraryType = "user"

	// DefaultItemType is used when creating records without an item type
	DefaultItemType = "journalArticle"
)

// Backend endpoints and paths
const (
	// ZoteroAPIURL is the Zotero Web API root
	ZoteroAPIURL = "https://api.zotero.org"

	// ZoteroLocalURL is the local Zotero connector API root
	ZoteroLocalURL = "http://localhost:23119/api"

	// ZoteroAPIVersion is the Web API version requested
	ZoteroAPIVersion = "3"

	// DefaultSQLitePath is the default location of the local Zotero database
	DefaultSQLitePath = "~/Zotero/zotero.sqlite"

	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".zotsync"
)

// Format constants
const (
	// TimeFormatZotero is the timestamp layout used in zotero.sqlite
	TimeFormatZotero = "2006-01-02 15:04:05"

	// TimeFormatFilename is the format used in generated filenames
	TimeFormatFilename = "20060102-150405"
)
