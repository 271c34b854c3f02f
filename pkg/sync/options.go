// Package sync drives the export, import and clean commands against a
// record repository.
package sync

import (
	"slices"
	"strings"
	"time"

	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
)

// Options controls every command of a Syncer. They are resolved once at
// startup and never read from the environment below this package.
type Options struct {
	// Shared
	DryRun    bool          // Compute and report, never mutate
	TagPrefix string        // Prefix of review status tags
	Delimiter string        // Joins authors and tags in a cell
	PageSize  int           // Records per listRecords call
	Timeout   time.Duration // Per-command timeout; zero means none

	// Export and clean
	OnlyPrefix bool // Restrict the record set to records carrying a prefixed tag

	// Import
	Strict       bool                 // Abort before any mutation when a row is malformed
	IgnoreFields []string             // Fields never written by import
	Strategy     differ.ApplyStrategy // Which changes import applies

	// Clean
	Dedupe      bool           // Cluster and merge duplicates
	Threshold   int            // Similarity threshold in [0,100]
	Policy      planner.Policy // Canonical selection order
	ResetStatus bool           // Strip every prefixed tag
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		DryRun:    false,
		TagPrefix: constants.DefaultTagPrefix,
		Delimiter: constants.DefaultDelimiter,
		PageSize:  constants.DefaultPageSize,
		Strategy:  differ.ApplyAll,
		Dedupe:    true,
		Threshold: constants.DefaultThreshold,
		Policy:    planner.DefaultPolicy(),
	}
}

// Apply applies the given options to the sync options.
func (s *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the options. A threshold outside [0,100] is reported as
// an InvalidThresholdError so that no command starts any work with it.
func (s *Options) Validate() error {
	if s.Threshold < 0 || s.Threshold > 100 {
		return errors.NewInvalidThresholdError(s.Threshold)
	}
	if strings.TrimSpace(s.TagPrefix) == "" {
		return &errors.ValidationError{
			Field:   "TagPrefix",
			Value:   s.TagPrefix,
			Message: "tag prefix must not be empty",
		}
	}
	if err := rows.ValidDelimiter(s.Delimiter); err != nil {
		return err
	}
	if s.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   s.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	if s.PageSize < 0 || s.PageSize > constants.MaxPageSize {
		return &errors.ValidationError{
			Field:   "PageSize",
			Value:   s.PageSize,
			Message: "page size must be between 0 and 100",
		}
	}
	if _, ok := differ.ParseApplyStrategy(string(s.Strategy)); !ok {
		return &errors.ValidationError{
			Field:   "Strategy",
			Value:   s.Strategy,
			Message: "unknown apply strategy",
		}
	}
	for _, f := range s.IgnoreFields {
		if !isPatchable(f) {
			return &errors.ValidationError{
				Field:   "IgnoreFields",
				Value:   f,
				Message: "unknown field " + f,
			}
		}
	}
	return nil
}

func isPatchable(field string) bool {
	return slices.Contains(records.PatchableFields, field)
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithTagPrefix configures the review tag prefix.
func WithTagPrefix(prefix string) Option {
	return func(opts *Options) {
		opts.TagPrefix = prefix
	}
}

// WithDelimiter configures the list delimiter used in cells.
func WithDelimiter(delim string) Option {
	return func(opts *Options) {
		opts.Delimiter = delim
	}
}

// WithPageSize configures how many records are fetched per page.
func WithPageSize(n int) Option {
	return func(opts *Options) {
		opts.PageSize = n
	}
}

// WithTimeout configures the per-command timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithOnlyPrefix restricts export and clean to records with a prefixed tag.
func WithOnlyPrefix(only bool) Option {
	return func(opts *Options) {
		opts.OnlyPrefix = only
	}
}

// WithStrict configures strict import.
func WithStrict(strict bool) Option {
	return func(opts *Options) {
		opts.Strict = strict
	}
}

// WithIgnoreFields configures fields import never writes.
func WithIgnoreFields(fields ...string) Option {
	return func(opts *Options) {
		opts.IgnoreFields = append(opts.IgnoreFields, fields...)
	}
}

// WithApplyStrategy configures which import changes are applied.
func WithApplyStrategy(strategy differ.ApplyStrategy) Option {
	return func(opts *Options) {
		opts.Strategy = strategy
	}
}

// WithDedupe enables or disables duplicate merging in clean.
func WithDedupe(dedupe bool) Option {
	return func(opts *Options) {
		opts.Dedupe = dedupe
	}
}

// WithThreshold configures the similarity threshold.
func WithThreshold(threshold int) Option {
	return func(opts *Options) {
		opts.Threshold = threshold
	}
}

// WithPolicy configures the canonical selection policy.
func WithPolicy(policy planner.Policy) Option {
	return func(opts *Options) {
		opts.Policy = policy
	}
}

// WithResetStatus configures clean to strip prefixed tags.
func WithResetStatus(reset bool) Option {
	return func(opts *Options) {
		opts.ResetStatus = reset
	}
}
