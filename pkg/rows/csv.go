package rows

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/tagcodec"
)

const bom = "\ufeff"

// Entry is one data row read from a file. Err is set when a cell could
// not be interpreted; Row then holds whatever was readable.
type Entry struct {
	Index int
	Row   Row
	Err   error
}

// Table is the parsed content of a file.
type Table struct {
	Columns Columns
	Entries []Entry
}

// Malformed returns the entries that failed to parse.
func (t *Table) Malformed() []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// ReadFile reads a CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}
	return t, nil
}

// Read parses CSV with a header line. Unknown columns are ignored and
// short lines are padded with empty cells.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{Columns: Columns{}}, nil
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: Columns{}}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		name := CanonicalColumn(h)
		if _, dup := index[name]; dup || name == "" {
			continue
		}
		index[name] = i
		t.Columns = append(t.Columns, name)
	}

	deriveFromLabel := !t.Columns.Has(ColIncluded) && !t.Columns.Has(ColExcluded) && t.Columns.Has(ColLabel)

	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blankRecord(rec) {
			n--
			continue
		}
		cell := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		e := Entry{Index: n}
		e.Row = Row{
			ID:       cell(ColID),
			Type:     cell(ColType),
			Title:    cell(ColTitle),
			Authors:  cell(ColAuthors),
			Year:     cell(ColYear),
			Venue:    cell(ColVenue),
			DOI:      cell(ColDOI),
			Abstract: cell(ColAbstract),
			URL:      cell(ColURL),
			Tags:     cell(ColTags),
			Label:    cell(ColLabel),
			Time:     cell(ColTime),
			Note:     cell(ColNote),
		}
		for _, f := range []struct {
			col string
			dst *bool
		}{
			{ColIncluded, &e.Row.Included},
			{ColExcluded, &e.Row.Excluded},
			{ColAmbiguous, &e.Row.Ambiguous},
		} {
			v, ok := ParseFlag(cell(f.col))
			if !ok && e.Err == nil {
				e.Err = errors.NewMalformedRowError(n, f.col, fmt.Sprintf("%q is not a flag", cell(f.col)))
			}
			*f.dst = v
		}
		if deriveFromLabel {
			if s, ok := tagcodec.ParseLabel(e.Row.Label); ok {
				e.Row.Included, e.Row.Excluded = s.Included, s.Excluded
			}
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Write serializes rows with the export header.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path atomically: the content is staged in a
// temporary file in the same directory and renamed into place, so a failed
// export never leaves a partial file behind.
func WriteFile(path string, rows []Row) error {
	var buf bytes.Buffer
	if err := Write(&buf, rows); err != nil {
		return errors.WrapIO("encode", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("create", dir, err)
		}
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

func (r Row) cells() []string {
	return []string{
		r.ID, r.Type, r.Title, r.Authors, r.Year, r.Venue, r.DOI, r.Abstract, r.URL,
		r.Tags, FormatFlag(r.Included), FormatFlag(r.Excluded), FormatFlag(r.Ambiguous),
		r.Label, r.Time, r.Note,
	}
}
