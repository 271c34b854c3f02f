package rows_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
	"github.com/espace/zotsync/pkg/tagcodec"
)

func newMapper(t *testing.T) *rows.Mapper {
	t.Helper()
	c, err := tagcodec.New("review:")
	require.NoError(t, err)
	return rows.NewMapper(c, "")
}

func TestRoundTrip(t *testing.T) {
	m := newMapper(t)
	tests := []struct {
		name string
		rec  records.Record
	}{
		{
			name: "complete",
			rec: records.Record{
				ID: "ABCD2345", Version: "17", Modified: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
				Fields: records.Fields{
					ItemType: "journalArticle",
					Title:    "Deep Learning",
					Authors:  []string{"LeCun, Yann", "Bengio, Yoshua", "Hinton, Geoffrey"},
					Year:     2015,
					Venue:    "Nature",
					DOI:      "10.1038/nature14539",
					Abstract: "Deep learning allows computational models...\nSecond paragraph.",
					URL:      "https://www.nature.com/articles/nature14539",
					Tags:     []string{"ml", "review:include", "review:Reason=core paper", "review:Time=2024-01-01 12:00:00"},
				},
			},
		},
		{
			name: "bare title",
			rec:  records.Record{ID: "K1", Fields: records.Fields{Title: "Untitled draft"}},
		},
		{
			name: "ambiguous status survives",
			rec: records.Record{ID: "K2", Fields: records.Fields{
				Title: "Both ways",
				Tags:  []string{"review:exclude", "review:Decision=included"},
			}},
		},
		{
			name: "separator inside items",
			rec: records.Record{ID: "K4", Fields: records.Fields{
				Title:   "Mixed methods",
				Authors: []string{"Smith; Jones Consortium", `Back\slash, B`},
				Tags:    []string{"methods;qualitative", "review:include"},
			}},
		},
		{
			name: "whitespace kept verbatim",
			rec: records.Record{ID: "K5", Fields: records.Fields{
				ItemType: "book",
				Title:    " Deep Learning ",
				Venue:    "MIT Press ",
				DOI:      " 10.1/x",
				URL:      "https://example.org/ ",
				Tags:     []string{" padded tag "},
			}},
		},
		{
			name: "legacy spelling untouched",
			rec: records.Record{ID: "K3", Fields: records.Fields{
				Title: "Legacy", Tags: []string{"Review:Excluded"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := m.ToRow(tt.rec)
			draft, err := m.FromRow(1, row, nil)
			require.NoError(t, err)

			want := tt.rec.Draft()
			if diff := cmp.Diff(want, draft, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListCells(t *testing.T) {
	m := newMapper(t)
	row := m.ToRow(records.Record{ID: "X", Fields: records.Fields{
		Title: "T",
		Tags:  []string{"methods;qualitative", "ml"},
	}})
	assert.Equal(t, `methods\;qualitative; ml`, row.Tags)

	draft, err := m.FromRow(1, rows.Row{Title: "T", Tags: " a ;b;;  c ", Authors: "Doe, J;Roe, R"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, draft.Tags)
	assert.Equal(t, []string{"Doe, J", "Roe, R"}, draft.Authors)
}

func TestValidDelimiter(t *testing.T) {
	tests := []struct {
		delim   string
		wantErr bool
	}{
		{delim: "; "},
		{delim: " | "},
		{delim: "||"},
		{delim: ", ", wantErr: true},
		{delim: ",", wantErr: true},
		{delim: `\`, wantErr: true},
		{delim: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.delim, func(t *testing.T) {
			err := rows.ValidDelimiter(tt.delim)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestToRow(t *testing.T) {
	m := newMapper(t)
	row := m.ToRow(records.Record{ID: "X", Fields: records.Fields{
		Title:   "T",
		Authors: []string{"Doe, Jane", "Roe, R"},
		Tags:    []string{"review:include", "review:exclude", "review:Reason=unclear"},
	}})

	assert.Equal(t, "Doe, Jane; Roe, R", row.Authors)
	assert.Equal(t, "", row.Year)
	assert.True(t, row.Included)
	assert.True(t, row.Excluded)
	assert.True(t, row.Ambiguous)
	assert.Equal(t, "", row.Label)
	assert.Equal(t, "unclear", row.Note)
}

func TestFromRowMalformed(t *testing.T) {
	m := newMapper(t)
	tests := []struct {
		name   string
		row    rows.Row
		cols   rows.Columns
		column string
	}{
		{name: "blank title", row: rows.Row{Title: "   "}, column: "title"},
		{name: "no title column", row: rows.Row{Title: "ignored"}, cols: rows.Columns{"doi"}, column: "title"},
		{name: "bad year", row: rows.Row{Title: "T", Year: "n.d."}, column: "year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.FromRow(4, tt.row, tt.cols)
			require.Error(t, err)
			assert.True(t, errors.IsMalformedRow(err))

			var mre *errors.MalformedRowError
			require.ErrorAs(t, err, &mre)
			assert.Equal(t, 4, mre.Row)
			assert.Equal(t, tt.column, mre.Column)
		})
	}
}

func TestFromRowStatusOnly(t *testing.T) {
	m := newMapper(t)
	cols := rows.Columns{"title", "included", "excluded"}

	d, err := m.FromRow(1, rows.Row{Title: "T", Tags: "ignored", Included: true}, cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"review:include"}, d.Tags)

	merged := m.Overlay([]string{"ml", "review:exclude"}, rows.Row{Included: true}, cols)
	assert.Equal(t, []string{"ml", "review:include"}, merged)

	untouched := m.Overlay([]string{"review:exclude"}, rows.Row{}, rows.Columns{"title"})
	assert.Equal(t, []string{"review:exclude"}, untouched)
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"", 0, true},
		{"2019", 2019, true},
		{"2019.0", 2019, true},
		{"March 2019", 2019, true},
		{"2019-03-01", 2019, true},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := rows.ParseYear(tt.in)
			assert.Equal(t, tt.ok, err == nil)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 1998, rows.GuessYear("Spring 1998"))
}

func TestColumns(t *testing.T) {
	var all rows.Columns
	assert.True(t, all.Has("tags"))
	assert.True(t, all.HasStatus())

	some := rows.Columns{"title", "asreview_label"}
	assert.False(t, some.Has("tags"))
	assert.True(t, some.HasStatus())
	assert.Equal(t, []string{"title"}, some.Fields())

	assert.Equal(t, "asreview_label", rows.CanonicalColumn(" Label "))
	assert.Equal(t, "review_note", rows.CanonicalColumn("asreview_note"))
}
