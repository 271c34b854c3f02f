package sync

import (
	"context"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
	"github.com/espace/zotsync/pkg/tagcodec"
)

// Syncer runs commands against one repository with fixed options.
// A Syncer is not safe for concurrent command invocations.
type Syncer struct {
	hooks

	repo    records.Repository
	options *Options
	codec   *tagcodec.Codec
	mapper  *rows.Mapper
}

// New validates the options and returns a Syncer.
func New(repo records.Repository, opts ...Option) (*Syncer, error) {
	if repo == nil {
		return nil, &errors.ValidationError{Field: "repository", Message: "cannot be nil"}
	}
	options := Defaults().Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}
	codec, err := tagcodec.New(options.TagPrefix)
	if err != nil {
		return nil, err
	}
	return &Syncer{
		repo:    repo,
		options: options,
		codec:   codec,
		mapper:  rows.NewMapper(codec, options.Delimiter),
	}, nil
}

// Options returns a copy of the resolved options.
func (s *Syncer) Options() Options {
	return *s.options
}

// begin prepares the context of one command: timeout and logger fields.
func (s *Syncer) begin(ctx context.Context, command Command) (context.Context, context.CancelFunc, *Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if s.options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.options.Timeout)
	} else {
		cancel = func() {}
	}
	ctx = logging.WithCommand(ctx, command.String())
	if s.options.DryRun {
		ctx = logging.WithField(ctx, "dry_run", true)
	}
	return ctx, cancel, &Result{DryRun: s.options.DryRun}
}

// fetch materializes the whole in-scope record set.
func (s *Syncer) fetch(ctx context.Context, onlyPrefix bool) ([]records.Record, error) {
	filter := records.Filter{Limit: s.options.PageSize}
	if onlyPrefix {
		filter.TagPrefix = s.options.TagPrefix
	}
	recs, err := records.ListAll(ctx, s.repo, filter)
	if err != nil {
		return nil, err
	}
	if onlyPrefix {
		// backends may ignore the filter; apply it again
		kept := recs[:0]
		for _, r := range recs {
			if filter.Match(r) {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	logging.FromContext(ctx).Debug().Int("records", len(recs)).Msg("Fetched records")
	return recs, nil
}

// skippable reports whether a failed mutation only affects its own record.
func skippable(err error) bool {
	return errors.IsConflict(err) || errors.IsNotFound(err)
}

func (r *Result) conflict(id, action string, row int, err error) {
	r.Counts.Conflicted++
	r.Conflicts = append(r.Conflicts, Conflict{RecordID: id, Action: action, Row: row, Message: err.Error()})
}
