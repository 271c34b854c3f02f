package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espace/zotsync/internal/cmd/table"
	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/sync"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "table", want: FormatTable},
		{in: " JSON ", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "markdown", want: FormatMarkdown},
		{in: "md", want: FormatMarkdown},
		{in: "wide", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestTableFormatterRendersData(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(FormatTable).Format(&buf, table.Data{
		Headers: []string{"Name", "Count"},
		Rows:    [][]string{{"created", "3"}, {"deleted", "1"}},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "deleted")
	assert.Contains(t, out, "3")
}

func TestTableFormatterStructFallback(t *testing.T) {
	type info struct {
		RunID  string `json:"run_id"`
		Hidden string `json:"-"`
	}
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, info{RunID: "abc", Hidden: "secret"}))
	assert.Contains(t, buf.String(), "Run Id")
	assert.Contains(t, buf.String(), "abc")
	assert.NotContains(t, buf.String(), "secret")
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []string{"a", "b"}))
	var got []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []string{"a", "b"}, got)
}

func sampleResult() *sync.Result {
	return &sync.Result{
		Command: sync.CommandClean,
		DryRun:  true,
		State:   sync.StateDone,
		Counts:  sync.Counts{Fetched: 4, Clusters: 1, Merged: 1, Deleted: 1},
		Plan: &planner.Plan{
			Clusters: 1,
			Actions: []planner.Action{
				{Kind: planner.ActionKeep, RecordID: "A", Cluster: 0},
				{Kind: planner.ActionMergeTags, RecordID: "A", Sources: []string{"B"}, Changed: true, Cluster: 0},
				{Kind: planner.ActionDelete, RecordID: "B", Title: "Deep learning", Cluster: 0},
			},
		},
		Conflicts: []sync.Conflict{{RecordID: "C", Action: "delete", Message: "version changed"}},
	}
}

func TestFormatResultTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatResult(&buf, FormatTable, sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "Planned changes:")
	assert.Contains(t, out, "merge-tags")
	assert.Contains(t, out, "from B")
	assert.Contains(t, out, "Problems:")
	assert.Contains(t, out, "version changed")
}

func TestFormatResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatResult(&buf, FormatJSON, sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "clean", got["command"])
	assert.Equal(t, true, got["dry_run"])
	counts := got["counts"].(map[string]any)
	assert.EqualValues(t, 1, counts["deleted"])
}

func TestFormatResultYAML(t *testing.T) {
	var buf bytes.Buffer
	r := &sync.Result{
		Command: sync.CommandImport,
		State:   sync.StateDone,
		Counts:  sync.Counts{Created: 2},
		Changes: &differ.Changeset{},
	}
	require.NoError(t, FormatResult(&buf, FormatYAML, r))
	assert.Contains(t, buf.String(), "command: import")
	assert.Contains(t, buf.String(), "created: 2")
}

func TestFormatResultNil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatResult(&buf, FormatTable, nil))
	assert.Empty(t, buf.String())
}

func TestFormatResultMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatResult(&buf, FormatMarkdown, sampleResult()))
	out := buf.String()
	assert.Contains(t, out, "## zotsync clean")
	assert.Contains(t, out, "Metric")
	assert.Contains(t, out, "## Planned changes")
	assert.Contains(t, out, "merge-tags")
	assert.Contains(t, out, "## Problems")
}

func TestMarkdownFormatterRejectsScalars(t *testing.T) {
	var buf bytes.Buffer
	err := (&MarkdownFormatter{}).Format(&buf, 42)
	require.Error(t, err)
}
