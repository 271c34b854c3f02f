package sync

import (
	"context"
	"io"

	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
)

// Export writes every in-scope record to path as CSV. The file is
// replaced atomically; "-" is not special here, use ExportTo for streams.
// A dry run maps the records but writes nothing.
func (s *Syncer) Export(ctx context.Context, path string) (*Result, error) {
	return s.export(ctx, path, func(out []rows.Row) error {
		return rows.WriteFile(path, out)
	})
}

// ExportTo writes the CSV to w.
func (s *Syncer) ExportTo(ctx context.Context, w io.Writer) (*Result, error) {
	return s.export(ctx, "-", func(out []rows.Row) error {
		return rows.Write(w, out)
	})
}

func (s *Syncer) export(ctx context.Context, target string, write func([]rows.Row) error) (*Result, error) {
	ctx, cancel, result := s.begin(ctx, CommandExport)
	defer cancel()
	m := newMachine(ctx, CommandExport, result)
	logger := logging.FromContext(ctx)
	result.Output = target

	m.enter(StateFetching)
	recs, err := s.fetch(ctx, s.options.OnlyPrefix)
	if err != nil {
		return result, m.fail(err)
	}
	result.Counts.Fetched = len(recs)

	m.enter(StateMapping)
	out := s.toRows(recs, result)

	m.enter(StateWriting)
	if s.options.DryRun {
		logger.Info().Int("rows", len(out)).Msg("Dry run completed - nothing written")
	} else {
		if err := write(out); err != nil {
			return result, m.fail(err)
		}
		logger.Info().Int("rows", len(out)).Str("output", target).Msg("Export written")
	}
	result.Counts.Exported = len(out)

	m.enter(StateDone)
	return result, nil
}

func (s *Syncer) toRows(recs []records.Record, result *Result) []rows.Row {
	out := make([]rows.Row, 0, len(recs))
	for _, r := range recs {
		row := s.mapper.ToRow(r)
		if row.Ambiguous {
			result.Counts.Ambiguous++
		}
		out = append(out, row)
	}
	return out
}
