// Package rows converts library records to flat CSV rows and back.
//
// The mapper is total in the export direction: every record yields a row,
// with empty strings for absent values. In the import direction only the
// title is mandatory; a row without one is reported as malformed and never
// guessed.
package rows

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/tagcodec"
)

// Column names of the tabular file contract.
const (
	ColID        = "id"
	ColType      = "type"
	ColTitle     = "title"
	ColAuthors   = "authors"
	ColYear      = "year"
	ColVenue     = "venue"
	ColDOI       = "doi"
	ColAbstract  = "abstract"
	ColURL       = "url"
	ColTags      = "tags"
	ColIncluded  = "included"
	ColExcluded  = "excluded"
	ColAmbiguous = "ambiguous"
	ColLabel     = "asreview_label"
	ColTime      = "review_time"
	ColNote      = "review_note"
)

// ExportColumns is the header written on export, in order.
var ExportColumns = Columns{
	ColID, ColType, ColTitle, ColAuthors, ColYear, ColVenue, ColDOI, ColAbstract, ColURL,
	ColTags, ColIncluded, ColExcluded, ColAmbiguous, ColLabel, ColTime, ColNote,
}

// aliases maps header spellings written by screening tools to column names.
var aliases = map[string]string{
	"label":            ColLabel,
	"asreview_time":    ColTime,
	"asreview_note":    ColNote,
	"note":             ColNote,
	"key":              ColID,
	"item_type":        ColType,
	"publication_year": ColYear,
	"journal":          ColVenue,
	"author":           ColAuthors,
}

// Columns lists the columns present in a file.
type Columns []string

// Has reports whether name is present. A nil set has every column.
func (c Columns) Has(name string) bool {
	if c == nil {
		return true
	}
	return slices.Contains(c, name)
}

// HasStatus reports whether any column carries a review decision.
func (c Columns) HasStatus() bool {
	return c.Has(ColIncluded) || c.Has(ColExcluded) || c.Has(ColLabel)
}

// Fields returns the record fields a file with these columns can express.
func (c Columns) Fields() []string {
	var out []string
	for _, f := range records.PatchableFields {
		if c.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// CanonicalColumn maps a header cell to its column name.
func CanonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	if alias, ok := aliases[h]; ok {
		return alias
	}
	return h
}

// Row is one flat record. Text fields hold the exact cell values.
type Row struct {
	ID        string `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	Title     string `json:"title" yaml:"title"`
	Authors   string `json:"authors" yaml:"authors"`
	Year      string `json:"year" yaml:"year"`
	Venue     string `json:"venue" yaml:"venue"`
	DOI       string `json:"doi" yaml:"doi"`
	Abstract  string `json:"abstract" yaml:"abstract"`
	URL       string `json:"url" yaml:"url"`
	Tags      string `json:"tags" yaml:"tags"`
	Included  bool   `json:"included" yaml:"included"`
	Excluded  bool   `json:"excluded" yaml:"excluded"`
	Ambiguous bool   `json:"ambiguous" yaml:"ambiguous"`
	Label     string `json:"asreview_label" yaml:"asreview_label"`
	Time      string `json:"review_time" yaml:"review_time"`
	Note      string `json:"review_note" yaml:"review_note"`
}

// Status returns the row's decision flags.
func (r Row) Status() tagcodec.Status {
	return tagcodec.Status{Included: r.Included, Excluded: r.Excluded}
}

// Mapper converts between records and rows.
type Mapper struct {
	codec *tagcodec.Codec
	delim string
}

// NewMapper returns a mapper joining list fields with delimiter.
// An empty delimiter selects constants.DefaultDelimiter.
func NewMapper(codec *tagcodec.Codec, delimiter string) *Mapper {
	if delimiter == "" {
		delimiter = constants.DefaultDelimiter
	}
	return &Mapper{codec: codec, delim: delimiter}
}

// Codec returns the tag codec the mapper applies.
func (m *Mapper) Codec() *tagcodec.Codec {
	return m.codec
}

// ToRow flattens a record. It never fails. Authors and tags are joined
// with the delimiter; separator characters inside an item are escaped
// with a backslash.
func (m *Mapper) ToRow(r records.Record) Row {
	status := m.codec.EncodeStatus(r.Tags)
	row := Row{
		ID:        r.ID,
		Type:      r.ItemType,
		Title:     r.Title,
		Authors:   joinList(r.Authors, m.delim),
		Venue:     r.Venue,
		DOI:       r.DOI,
		Abstract:  r.Abstract,
		URL:       r.URL,
		Tags:      joinList(r.Tags, m.delim),
		Included:  status.Included,
		Excluded:  status.Excluded,
		Ambiguous: status.Ambiguous(),
		Label:     status.Label(),
		Time:      m.codec.Time(r.Tags),
		Note:      m.codec.Note(r.Tags),
	}
	if r.Year != 0 {
		row.Year = strconv.Itoa(r.Year)
	}
	return row
}

// FromRow builds a draft from row number index (1-based, data rows only).
// cols lists the columns the file carried; nil means all of them. Status,
// note and time columns are applied on top of the tags column so that the
// draft's tag set reaches the row's decision with the fewest changes.
func (m *Mapper) FromRow(index int, row Row, cols Columns) (records.Draft, error) {
	if !cols.Has(ColTitle) {
		return records.Draft{}, errors.NewMalformedRowError(index, ColTitle, "")
	}
	if strings.TrimSpace(row.Title) == "" {
		return records.Draft{}, errors.NewMalformedRowError(index, ColTitle, "")
	}

	year, err := ParseYear(row.Year)
	if err != nil {
		return records.Draft{}, errors.NewMalformedRowError(index, ColYear, fmt.Sprintf("%q is not a year", row.Year))
	}

	d := records.Draft{
		ID: strings.TrimSpace(row.ID),
		Fields: records.Fields{
			ItemType: row.Type,
			Title:    row.Title,
			Authors:  splitList(row.Authors, m.delim),
			Year:     year,
			Venue:    row.Venue,
			DOI:      row.DOI,
			Abstract: row.Abstract,
			URL:      row.URL,
		},
	}
	var tags []string
	if cols.Has(ColTags) {
		tags = splitList(row.Tags, m.delim)
	}
	d.Tags = m.Overlay(tags, row, cols)
	return d, nil
}

// Overlay applies the row's status, note and time columns to base.
// Columns absent from cols leave base untouched.
func (m *Mapper) Overlay(base []string, row Row, cols Columns) []string {
	tags := slices.Clone(base)
	if cols.HasStatus() {
		tags = m.codec.ApplyStatus(tags, row.Status())
	}
	if cols.Has(ColNote) && strings.TrimSpace(row.Note) != m.codec.Note(tags) {
		tags = m.codec.SetNote(tags, row.Note)
	}
	if cols.Has(ColTime) && strings.TrimSpace(row.Time) != m.codec.Time(tags) {
		tags = m.codec.SetTime(tags, row.Time)
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// ParseYear reads a year cell. Blank is zero; free-form dates such as
// "March 2019" yield their first plausible year.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if y, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
		return y, nil
	}
	if m := yearPattern.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return y, nil
	}
	return 0, errors.NewValidationError(ColYear, s, "not a year")
}

// GuessYear extracts the first plausible year from a free-form date.
func GuessYear(s string) int {
	if m := yearPattern.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

// ParseFlag reads an included/excluded cell.
func ParseFlag(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes", "y", "x":
		return true, true
	case "", "0", "0.0", "false", "no", "n":
		return false, true
	}
	return false, false
}

// FormatFlag renders a flag cell.
func FormatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
