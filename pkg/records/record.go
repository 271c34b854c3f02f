// Package records defines the bibliographic record model shared by every
// zotsync component and the Repository capability set that backends implement.
package records

import (
	"slices"
	"strings"
	"time"
)

// Fields holds the user-visible metadata of a record.
type Fields struct {
	ItemType string   `json:"item_type,omitempty" yaml:"item_type,omitempty"`
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors,omitempty" yaml:"authors,omitempty"` // "Last, First" or a single-field name
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Venue    string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Record is a library entry as stored by a backend.
// ID and Version are assigned by the backend; Version is the
// optimistic-concurrency token checked on every update and delete.
type Record struct {
	ID       string    `json:"id" yaml:"id"`
	Version  string    `json:"version" yaml:"version"`
	Modified time.Time `json:"modified" yaml:"modified"`
	Fields   `yaml:",inline"`
}

// Draft is a record that has not been written yet.
// ID is only set when the draft came from a row that carried one.
type Draft struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Fields `yaml:",inline"`
}

// Clone returns a deep copy of the fields.
func (f Fields) Clone() Fields {
	f.Authors = slices.Clone(f.Authors)
	f.Tags = slices.Clone(f.Tags)
	return f
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Draft converts the record back into a draft carrying its ID.
func (r Record) Draft() Draft {
	return Draft{ID: r.ID, Fields: r.Fields.Clone()}
}

// HasDOI reports whether the record carries a non-blank DOI.
func (f Fields) HasDOI() bool {
	return strings.TrimSpace(f.DOI) != ""
}

// PopulatedFields counts the metadata fields that carry a value.
// Item type is not counted; every backend fills it.
func (f Fields) PopulatedFields() int {
	n := 0
	for _, s := range []string{f.Title, f.Venue, f.DOI, f.Abstract, f.URL} {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if len(f.Authors) > 0 {
		n++
	}
	if f.Year != 0 {
		n++
	}
	if len(f.Tags) > 0 {
		n++
	}
	return n
}

// HasTagPrefix reports whether any tag starts with prefix, ignoring case.
func (f Fields) HasTagPrefix(prefix string) bool {
	lp := strings.ToLower(prefix)
	for _, t := range f.Tags {
		if strings.HasPrefix(strings.ToLower(t), lp) {
			return true
		}
	}
	return false
}

// UnionTags appends the tags of extra that base does not contain yet.
// Order is preserved and comparison is exact.
func UnionTags(base []string, extra ...[]string) []string {
	out := slices.Clone(base)
	seen := make(map[string]bool, len(base))
	for _, t := range base {
		seen[t] = true
	}
	for _, tags := range extra {
		for _, t := range tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
