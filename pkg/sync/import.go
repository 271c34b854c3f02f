package sync

import (
	"context"
	"io"
	"slices"
	"sort"

	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
)

// Import reads a CSV file and upserts its rows into the repository.
func (s *Syncer) Import(ctx context.Context, path string) (*Result, error) {
	return s.importTable(ctx, path, func() (*rows.Table, error) {
		return rows.ReadFile(path)
	})
}

// ImportFrom reads CSV from r.
func (s *Syncer) ImportFrom(ctx context.Context, r io.Reader) (*Result, error) {
	return s.importTable(ctx, "-", func() (*rows.Table, error) {
		t, err := rows.Read(r)
		if err != nil {
			return nil, errors.WrapParse("csv", "-", err)
		}
		return t, nil
	})
}

func (s *Syncer) importTable(ctx context.Context, source string, read func() (*rows.Table, error)) (*Result, error) {
	ctx, cancel, result := s.begin(ctx, CommandImport)
	defer cancel()
	m := newMachine(ctx, CommandImport, result)
	logger := logging.FromContext(ctx).With().Str("input", source).Logger()

	m.enter(StateReading)
	table, err := read()
	if err != nil {
		return result, m.fail(err)
	}

	m.enter(StateMapping)
	incoming, byIndex, firstErr := s.mapRows(ctx, table, result)
	if firstErr != nil && s.options.Strict {
		return result, m.fail(firstErr)
	}

	m.enter(StateDiffing)
	existing, err := s.fetch(ctx, false)
	if err != nil {
		return result, m.fail(err)
	}
	result.Counts.Fetched = len(existing)

	d := differ.New(differ.WithIgnoredFields(s.ignoredFields(table.Columns)...))
	matches := d.Match(existing, incoming)
	if overlayTags(table.Columns) {
		// the file carries a decision but no tags: apply it to the current tags
		for i := range matches {
			if matches[i].Existing != nil {
				matches[i].Draft.Tags = s.mapper.Overlay(matches[i].Existing.Tags, byIndex[matches[i].Index], table.Columns)
			}
		}
	}
	full := d.Changes(matches)
	changes := full.Filter(s.options.Strategy)
	result.Changes = changes
	result.Counts.Skipped = len(full.Unchanged) + len(full.Duplicates) + full.Skipped(changes)
	for _, dup := range full.Duplicates {
		logger.Warn().Int("row", dup.Index).Int("duplicate_of", dup.DuplicateOf).Msg("Skipping duplicate row")
	}

	logger.Info().
		Int("added", len(changes.Added)).
		Int("updated", len(changes.Updated)).
		Int("skipped", result.Counts.Skipped).
		Msg("Import diff computed")

	if s.options.DryRun {
		result.Counts.Created = len(changes.Added)
		result.Counts.Updated = len(changes.Updated)
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - no changes applied")
		m.enter(StateDone)
		return result, nil
	}

	m.enter(StateApplying)
	if err := s.applyChanges(ctx, changes, result); err != nil {
		return result, m.fail(err)
	}

	m.enter(StateDone)
	return result, nil
}

// mapRows turns table entries into drafts, recording malformed rows.
// It returns the first mapping error for strict mode.
func (s *Syncer) mapRows(ctx context.Context, table *rows.Table, result *Result) ([]differ.Incoming, map[int]rows.Row, error) {
	logger := logging.FromContext(ctx)
	var firstErr error
	incoming := make([]differ.Incoming, 0, len(table.Entries))
	byIndex := make(map[int]rows.Row, len(table.Entries))

	for _, e := range table.Entries {
		err := e.Err
		var draft records.Draft
		if err == nil {
			draft, err = s.mapper.FromRow(e.Index, e.Row, table.Columns)
		}
		if err != nil {
			result.Counts.Malformed++
			result.Malformed = append(result.Malformed, malformedRow(e.Index, err))
			logger.Warn().Err(err).Int("row", e.Index).Msg("Malformed row")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if e.Row.Included && e.Row.Excluded {
			result.Counts.Ambiguous++
		}
		incoming = append(incoming, differ.Incoming{Index: e.Index, Draft: draft})
		byIndex[e.Index] = e.Row
	}
	return incoming, byIndex, firstErr
}

func malformedRow(index int, err error) MalformedRow {
	var mre *errors.MalformedRowError
	if errors.As(err, &mre) {
		return MalformedRow{Row: mre.Row, Column: mre.Column, Message: err.Error()}
	}
	return MalformedRow{Row: index, Message: err.Error()}
}

// ignoredFields lists the fields the diff must leave alone: those the file
// cannot express, plus those configured.
func (s *Syncer) ignoredFields(cols rows.Columns) []string {
	have := cols.Fields()
	var ignored []string
	for _, f := range records.PatchableFields {
		if slices.Contains(have, f) {
			continue
		}
		if f == records.FieldTags && overlayTags(cols) {
			continue
		}
		ignored = append(ignored, f)
	}
	return append(ignored, s.options.IgnoreFields...)
}

// overlayTags reports whether tags must be derived from the current record
// because the file has decision columns but no tags column.
func overlayTags(cols rows.Columns) bool {
	return !cols.Has(rows.ColTags) &&
		(cols.HasStatus() || cols.Has(rows.ColNote) || cols.Has(rows.ColTime))
}

type importStep struct {
	index  int
	add    *differ.Incoming
	update *differ.RecordUpdate
}

// applyChanges writes the changeset in row order, one action at a time.
func (s *Syncer) applyChanges(ctx context.Context, cs *differ.Changeset, result *Result) error {
	logger := logging.FromContext(ctx)

	steps := make([]importStep, 0, len(cs.Added)+len(cs.Updated))
	for i := range cs.Added {
		steps = append(steps, importStep{index: cs.Added[i].Index, add: &cs.Added[i]})
	}
	for i := range cs.Updated {
		steps = append(steps, importStep{index: cs.Updated[i].Index, update: &cs.Updated[i]})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].index < steps[j].index })

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case step.add != nil:
			draft := step.add.Draft
			// identifiers are assigned by the repository
			draft.ID = ""
			rec, err := s.repo.CreateRecord(ctx, draft)
			if err != nil {
				if skippable(err) {
					result.conflict("", "create", step.index, err)
					logger.Warn().Err(err).Int("row", step.index).Msg("Create skipped")
					continue
				}
				return err
			}
			result.Counts.Created++
			logger.Info().Int("row", step.index).Str("record_id", rec.ID).Msg("Record created")
			s.created(rec)

		case step.update != nil:
			u := step.update
			rec, err := s.repo.UpdateRecord(ctx, u.ID, u.Version, u.Patch)
			if err != nil {
				if skippable(err) {
					result.conflict(u.ID, "update", step.index, err)
					logger.Warn().Err(err).Int("row", step.index).Str("record_id", u.ID).Msg("Update skipped")
					continue
				}
				return err
			}
			result.Counts.Updated++
			logger.Info().
				Int("row", step.index).
				Str("record_id", rec.ID).
				Strs("fields", u.Patch.Names()).
				Msg("Record updated")
			s.updated(u.Existing, rec)
		}
	}
	return nil
}
