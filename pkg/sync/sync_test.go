package sync_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espace/zotsync/internal/backends/memory"
	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
	"github.com/espace/zotsync/pkg/sync"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func library() []records.Record {
	return []records.Record{
		{ID: "A", Version: "1", Modified: t0, Fields: records.Fields{Title: "Deep Learning", DOI: "10.1/x"}},
		{ID: "B", Version: "1", Modified: t0.Add(time.Hour), Fields: records.Fields{Title: "Deep Learning.", DOI: "10.1/x", Tags: []string{"review:include"}}},
		{ID: "C", Version: "1", Modified: t0, Fields: records.Fields{Title: "Attention is all you need", Authors: []string{"Vaswani, A"}, Year: 2017, Tags: []string{"nlp"}}},
		{ID: "D", Version: "1", Modified: t0, Fields: records.Fields{Title: "Both ways", Tags: []string{"review:include", "review:exclude"}}},
	}
}

func newSyncer(t *testing.T, repo records.Repository, opts ...sync.Option) *sync.Syncer {
	t.Helper()
	s, err := sync.New(repo, opts...)
	require.NoError(t, err)
	return s
}

func testContext(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), logging.NewTestLogger(t).Logger)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := sync.New(memory.New(nil), sync.WithThreshold(101))
	assert.True(t, errors.IsInvalidThreshold(err))

	_, err = sync.New(memory.New(nil), sync.WithTagPrefix(" "))
	assert.True(t, errors.IsValidationError(err))

	_, err = sync.New(memory.New(nil), sync.WithDelimiter(", "))
	assert.True(t, errors.IsValidationError(err))

	_, err = sync.New(memory.New(nil), sync.WithIgnoreFields("color"))
	assert.True(t, errors.IsValidationError(err))

	_, err = sync.New(nil)
	assert.Error(t, err)
}

func TestOptionsApplyStrategy(t *testing.T) {
	opts := sync.Defaults()
	assert.Equal(t, differ.ApplyAll, opts.Strategy)

	opts.Apply(sync.WithApplyStrategy(differ.ApplyUpdatesOnly))
	assert.Equal(t, differ.ApplyUpdatesOnly, opts.Strategy)
	require.NoError(t, opts.Validate())

	opts.Apply(sync.WithApplyStrategy("everything"))
	assert.True(t, errors.IsValidationError(opts.Validate()))
}

func TestExport(t *testing.T) {
	store := memory.New(library())
	s := newSyncer(t, store)
	path := filepath.Join(t.TempDir(), "out.csv")

	res, err := s.Export(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, sync.StateDone, res.State)
	assert.Equal(t, 4, res.Counts.Fetched)
	assert.Equal(t, 4, res.Counts.Exported)
	assert.Equal(t, 1, res.Counts.Ambiguous)

	tbl, err := rows.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, tbl.Entries, 4)
	assert.True(t, tbl.Entries[1].Row.Included)
	assert.Equal(t, "1", tbl.Entries[1].Row.Label)
}

func TestExportOnlyPrefixToWriter(t *testing.T) {
	s := newSyncer(t, memory.New(library()), sync.WithOnlyPrefix(true))
	var buf bytes.Buffer
	res, err := s.ExportTo(testContext(t), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts.Exported)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"), "header plus two rows")
}

func TestExportDryRunWritesNothing(t *testing.T) {
	s := newSyncer(t, memory.New(library()), sync.WithDryRun(true))
	path := filepath.Join(t.TempDir(), "out.csv")
	res, err := s.Export(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Counts.Exported)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportThenImportIsNoOp(t *testing.T) {
	store := memory.New(library())
	rec := memory.NewRecorder(store)
	s := newSyncer(t, rec)
	path := filepath.Join(t.TempDir(), "round.csv")

	_, err := s.Export(testContext(t), path)
	require.NoError(t, err)

	res, err := s.Import(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts.Created)
	assert.Equal(t, 0, res.Counts.Updated)
	assert.Equal(t, 4, res.Counts.Skipped)
	assert.Empty(t, rec.Mutations())
}

func TestExportThenImportKeepsSeparatorsAndSpacing(t *testing.T) {
	store := memory.New([]records.Record{{
		ID: "A", Version: "1", Modified: t0,
		Fields: records.Fields{
			Title:   " Deep Learning ",
			Authors: []string{"Smith; Jones Group", "Doe, J"},
			Tags:    []string{"methods;qualitative", "review:include"},
		},
	}})
	rec := memory.NewRecorder(store)
	s := newSyncer(t, rec)
	path := filepath.Join(t.TempDir(), "round.csv")

	_, err := s.Export(testContext(t), path)
	require.NoError(t, err)
	res, err := s.Import(testContext(t), path)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Counts.Skipped)
	assert.Empty(t, rec.Mutations())
	got, ok := store.Get("A")
	require.True(t, ok)
	assert.Equal(t, []string{"methods;qualitative", "review:include"}, got.Tags)
}

const importCSV = `id,title,authors,year,doi,tags,included,excluded
C,Attention is all you need,"Vaswani, A",2017,,nlp,1,0
,A brand new paper,"Doe, J",2024,,,0,1
,,,,,,,
,,"Nobody, N",1999,,,0,0
,Deep learning,,,10.1/x,,1,0
`

func TestImport(t *testing.T) {
	store := memory.New(library())
	s := newSyncer(t, store)

	var created []records.Record
	s.OnRecordCreated(func(r records.Record) { created = append(created, r) })

	res, err := s.ImportFrom(testContext(t), strings.NewReader(importCSV))
	require.NoError(t, err)

	assert.Equal(t, sync.StateDone, res.State)
	assert.Equal(t, 1, res.Counts.Created)
	assert.Equal(t, 2, res.Counts.Updated, "C gains include; A matched by DOI changes title and tags")
	assert.Equal(t, 1, res.Counts.Malformed)
	require.Len(t, res.Malformed, 1)
	assert.Equal(t, 3, res.Malformed[0].Row)
	assert.Equal(t, "title", res.Malformed[0].Column)

	c, _ := store.Get("C")
	assert.ElementsMatch(t, []string{"nlp", "review:include"}, c.Tags)
	assert.Equal(t, "2", c.Version)

	require.Len(t, created, 1)
	assert.Equal(t, "A brand new paper", created[0].Title)
	assert.Equal(t, []string{"review:exclude"}, created[0].Tags)
	assert.Equal(t, 5, store.Len())
}

func TestImportStrictAbortsBeforeMutation(t *testing.T) {
	rec := memory.NewRecorder(memory.New(library()))
	s := newSyncer(t, rec, sync.WithStrict(true))

	res, err := s.ImportFrom(testContext(t), strings.NewReader(importCSV))
	require.Error(t, err)
	assert.True(t, errors.IsMalformedRow(err))
	assert.True(t, res.Failed)
	assert.Equal(t, sync.StateMapping, res.State)
	assert.Empty(t, rec.Calls())

	var stage *errors.StageError
	require.ErrorAs(t, err, &stage)
	assert.Equal(t, "mapping", stage.Stage)
}

func TestImportStatusOnlyFile(t *testing.T) {
	store := memory.New(library())
	s := newSyncer(t, store)

	in := "title,authors,asreview_label,asreview_note\n" +
		"Attention is all you need,\"Vaswani, A\",0,wrong population\n"
	res, err := s.ImportFrom(testContext(t), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Updated)
	assert.Equal(t, 0, res.Counts.Created)

	c, _ := store.Get("C")
	assert.Equal(t, []string{"nlp", "review:exclude", "review:Reason=wrong population"}, c.Tags)
	assert.Equal(t, 2017, c.Year, "absent columns are left alone")
}

func TestImportAppliesConflictsAndContinues(t *testing.T) {
	store := memory.New(library(), memory.WithFailure(func(op, id string) error {
		if op == "update" && id == "C" {
			return errors.NewConflictError("record", id, "1")
		}
		return nil
	}))
	s := newSyncer(t, store)

	in := "id,title,tags\nC,Attention v2,nlp\nD,Both ways v2,\n"

	res, err := s.ImportFrom(testContext(t), strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Conflicted)
	assert.Equal(t, 1, res.Counts.Updated)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "C", res.Conflicts[0].RecordID)
	assert.Equal(t, 1, res.Conflicts[0].Row)
}

func TestImportUpdatesOnly(t *testing.T) {
	rec := memory.NewRecorder(memory.New(library()))
	s := newSyncer(t, rec, sync.WithApplyStrategy("updates-only"))
	res, err := s.ImportFrom(testContext(t), strings.NewReader("title\nCompletely new\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts.Created)
	assert.Equal(t, 1, res.Counts.Skipped)
	assert.Empty(t, rec.Mutations())
}

func TestCleanExample(t *testing.T) {
	store := memory.New(library())
	s := newSyncer(t, store, sync.WithThreshold(80))

	var deleted []string
	s.OnRecordDeleted(func(id string) { deleted = append(deleted, id) })

	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Clusters)
	assert.Equal(t, 1, res.Counts.Merged)
	assert.Equal(t, 1, res.Counts.Deleted)
	assert.Equal(t, []string{"A"}, deleted)

	b, ok := store.Get("B")
	require.True(t, ok)
	assert.Equal(t, []string{"review:include"}, b.Tags)
	assert.Equal(t, "1", b.Version, "no-op merge does not write")
	_, ok = store.Get("A")
	assert.False(t, ok)
}

func TestCleanMergesTagsBeforeDelete(t *testing.T) {
	store := memory.New([]records.Record{
		{ID: "K", Modified: t0, Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"a"}}},
		{ID: "L", Modified: t0.Add(time.Hour), Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"b"}}},
	})
	rec := memory.NewRecorder(store)
	s := newSyncer(t, rec)

	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []memory.Call{
		{Op: "update", ID: "K", Version: "1"},
		{Op: "delete", ID: "L", Version: "1"},
	}, rec.Mutations())
	k, _ := store.Get("K")
	assert.Equal(t, []string{"a", "b"}, k.Tags)
	assert.Equal(t, 1, res.Counts.Deleted)
}

func TestCleanMergeConflictSkipsDeletes(t *testing.T) {
	store := memory.New([]records.Record{
		{ID: "K", Modified: t0, Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"a"}}},
		{ID: "L", Modified: t0.Add(time.Hour), Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"b"}}},
	}, memory.WithFailure(func(op, id string) error {
		if op == "update" && id == "K" {
			return errors.NewConflictError("record", id, "1")
		}
		return nil
	}))
	s := newSyncer(t, store)

	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Conflicted)
	assert.Equal(t, 1, res.Counts.Skipped)
	assert.Equal(t, 0, res.Counts.Deleted)
	assert.Equal(t, 2, store.Len())
}

func TestCleanResetStatus(t *testing.T) {
	store := memory.New(library())
	s := newSyncer(t, store, sync.WithResetStatus(true), sync.WithDedupe(false))

	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts.Clusters)
	assert.Equal(t, 2, res.Counts.Updated)

	for _, r := range store.All() {
		for _, tag := range r.Tags {
			assert.False(t, strings.HasPrefix(tag, "review:"), "record %s still has %s", r.ID, tag)
		}
	}
}

func TestCleanResetAfterMergeUsesFreshVersion(t *testing.T) {
	store := memory.New([]records.Record{
		{ID: "K", Modified: t0, Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"a"}}},
		{ID: "L", Modified: t0.Add(time.Hour), Fields: records.Fields{Title: "Same paper", DOI: "10.2/y", Tags: []string{"review:include", "b"}}},
	})
	s := newSyncer(t, store, sync.WithResetStatus(true))

	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Zero(t, res.Counts.Conflicted)
	k, _ := store.Get("K")
	assert.Equal(t, []string{"a", "b"}, k.Tags)
	assert.Equal(t, "3", k.Version)
}

func TestBackendUnavailableIsFatal(t *testing.T) {
	down := errors.NewBackendUnavailableError("memory", "list", errors.New("connection refused"))
	store := memory.New(library(), memory.WithFailure(func(op, _ string) error {
		if op == "list" {
			return down
		}
		return nil
	}))
	s := newSyncer(t, store)

	for name, run := range map[string]func() (*sync.Result, error){
		"export": func() (*sync.Result, error) { return s.ExportTo(testContext(t), &bytes.Buffer{}) },
		"import": func() (*sync.Result, error) { return s.ImportFrom(testContext(t), strings.NewReader("title\nX\n")) },
		"clean":  func() (*sync.Result, error) { return s.Clean(testContext(t)) },
	} {
		t.Run(name, func(t *testing.T) {
			res, err := run()
			require.Error(t, err)
			assert.True(t, errors.IsBackendUnavailable(err))
			assert.True(t, res.Failed)
		})
	}
}

func TestApplyFailureAbortsRemainingActions(t *testing.T) {
	store := memory.New(library(), memory.WithFailure(func(op, _ string) error {
		if op == "create" {
			return errors.NewBackendUnavailableError("memory", "create", errors.New("timeout"))
		}
		return nil
	}))
	rec := memory.NewRecorder(store)
	s := newSyncer(t, rec)

	res, err := s.ImportFrom(testContext(t), strings.NewReader("title\nNew one\nNew two\n"))
	require.Error(t, err)
	assert.Equal(t, sync.StateApplying, res.State)
	assert.Len(t, rec.Mutations(), 1, "the first failure stops the command")
}

// Every command in dry-run mode must leave the repository untouched, even
// when the plan contains actions that would conflict.
func TestDryRunNeverMutates(t *testing.T) {
	conflicting := func(op, id string) error {
		if op != "list" {
			return errors.NewConflictError("record", id, "1")
		}
		return nil
	}
	runs := map[string]func(*sync.Syncer) (*sync.Result, error){
		"export": func(s *sync.Syncer) (*sync.Result, error) {
			return s.Export(testContext(t), filepath.Join(t.TempDir(), "x.csv"))
		},
		"import": func(s *sync.Syncer) (*sync.Result, error) {
			return s.ImportFrom(testContext(t), strings.NewReader(importCSV))
		},
		"clean": func(s *sync.Syncer) (*sync.Result, error) { return s.Clean(testContext(t)) },
	}
	for name, run := range runs {
		t.Run(name, func(t *testing.T) {
			rec := memory.NewRecorder(memory.New(library(), memory.WithFailure(conflicting)))
			s := newSyncer(t, rec, sync.WithDryRun(true), sync.WithThreshold(80), sync.WithResetStatus(true))

			res, err := run(s)
			require.NoError(t, err)
			assert.True(t, res.DryRun)
			assert.Equal(t, sync.StateDone, res.State)
			assert.Empty(t, rec.Mutations())
			assert.Contains(t, res.Summary(), "(Dry run)")
		})
	}
}

func TestDryRunReportsWouldBeCounts(t *testing.T) {
	s := newSyncer(t, memory.New(library()), sync.WithDryRun(true), sync.WithThreshold(80))
	res, err := s.Clean(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Deleted)
	assert.Equal(t, 1, res.Counts.Merged)
	require.NotNil(t, res.Plan)
	assert.Len(t, res.Plan.Actions, 3)
}

func TestSummary(t *testing.T) {
	r := &sync.Result{Command: sync.CommandImport, Counts: sync.Counts{Created: 2, Updated: 1, Skipped: 3, Conflicted: 1}}
	assert.Equal(t, "import: 2 created, 1 updated, 3 skipped, 1 conflicted", r.Summary())
	assert.True(t, r.HasChanges())
}

func TestStateTransitionsAreLogged(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)
	s := newSyncer(t, memory.New(library()), sync.WithDryRun(true))

	_, err := s.Clean(ctx)
	require.NoError(t, err)
	tl.AssertContains(t, `"to":"clustering"`)
	tl.AssertContains(t, `"to":"done"`)
	tl.AssertNotContains(t, `"to":"applying"`)
}
