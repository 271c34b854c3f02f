package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/sync"
)

func TestCountsToTableData(t *testing.T) {
	r := &sync.Result{
		Command: sync.CommandImport,
		DryRun:  true,
		State:   sync.StateDone,
		Counts:  sync.Counts{Fetched: 10, Created: 2, Malformed: 1},
	}
	want := [][]string{
		{"Command", "import"},
		{"Dry run", "yes"},
		{"Fetched", "10"},
		{"Created", "2"},
		{"Updated", "0"},
		{"Skipped", "0"},
		{"Malformed", "1"},
	}
	if diff := cmp.Diff(want, CountsToTableData(r).Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCountsToTableDataFailed(t *testing.T) {
	r := &sync.Result{
		Command: sync.CommandExport,
		State:   sync.StateWriting,
		Failed:  true,
		Output:  "out.csv",
	}
	rows := CountsToTableData(r).Rows
	assert.Contains(t, rows, []string{"Output", "out.csv"})
	assert.Contains(t, rows, []string{"Failed while", "writing"})
	assert.Contains(t, rows, []string{"Exported", "0"})
}

func TestPlanToTableDataSkipsKeep(t *testing.T) {
	p := &planner.Plan{Actions: []planner.Action{
		{Kind: planner.ActionKeep, RecordID: "A", Cluster: 0},
		{Kind: planner.ActionMergeTags, RecordID: "A", Sources: []string{"B", "C"}, Cluster: 0},
		{Kind: planner.ActionDelete, RecordID: "B", Title: "Deep learning", Cluster: 0},
		{Kind: planner.ActionRemoveTags, RecordID: "D", Tags: []string{"ml"}, Cluster: -1},
	}}
	want := [][]string{
		{"1", "merge-tags", "A", "", "from B, C"},
		{"1", "delete", "B", "Deep learning", ""},
		{"-", "remove-tags", "D", "", "ml"},
	}
	if diff := cmp.Diff(want, PlanToTableData(p).Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestChangesToTableData(t *testing.T) {
	cs := &differ.Changeset{
		Added: []differ.Incoming{{Index: 3, Draft: records.Draft{Fields: records.Fields{Title: "New paper"}}}},
		Updated: []differ.RecordUpdate{{
			Index: 1,
			ID:    "A",
			Changes: []differ.FieldChange{
				{Path: "year", OldValue: "2016", NewValue: "2017", Type: differ.ChangeTypeUpdate},
			},
		}},
	}
	want := [][]string{
		{"3", "create", "-", "title", "", "New paper"},
		{"1", "update", "A", "year", "2016", "2017"},
	}
	if diff := cmp.Diff(want, ChangesToTableData(cs).Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestConflictsToTableData(t *testing.T) {
	r := &sync.Result{
		Conflicts: []sync.Conflict{{RecordID: "A", Action: "update", Row: 2, Message: "stale"}},
		Malformed: []sync.MalformedRow{{Row: 5, Column: "title", Message: "missing"}},
	}
	want := [][]string{
		{"2", "conflict", "A", "update: stale"},
		{"5", "malformed", "-", "title: missing"},
	}
	assert.Equal(t, want, ConflictsToTableData(r).Rows)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Attenti...", Truncate("Attention is all you need", 10))
	assert.Equal(t, "Ünï", Truncate("Ünïcode", 3))
}
