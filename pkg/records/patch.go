package records

import "slices"

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title    *string   `json:"title,omitempty" yaml:"title,omitempty"`
	Authors  *[]string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Year     *int      `json:"year,omitempty" yaml:"year,omitempty"`
	Venue    *string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	DOI      *string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Abstract *string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	URL      *string   `json:"url,omitempty" yaml:"url,omitempty"`
	Tags     *[]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TagsPatch returns a patch that only replaces the tag set.
func TagsPatch(tags []string) Patch {
	t := slices.Clone(tags)
	return Patch{Tags: &t}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Authors == nil && p.Year == nil && p.Venue == nil &&
		p.DOI == nil && p.Abstract == nil && p.URL == nil && p.Tags == nil
}

// Names lists the fields the patch touches, in a fixed order.
func (p Patch) Names() []string {
	var names []string
	if p.Title != nil {
		names = append(names, FieldTitle)
	}
	if p.Authors != nil {
		names = append(names, FieldAuthors)
	}
	if p.Year != nil {
		names = append(names, FieldYear)
	}
	if p.Venue != nil {
		names = append(names, FieldVenue)
	}
	if p.DOI != nil {
		names = append(names, FieldDOI)
	}
	if p.Abstract != nil {
		names = append(names, FieldAbstract)
	}
	if p.URL != nil {
		names = append(names, FieldURL)
	}
	if p.Tags != nil {
		names = append(names, FieldTags)
	}
	return names
}

// Apply returns a copy of f with the patch applied.
func (p Patch) Apply(f Fields) Fields {
	out := f.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Authors != nil {
		out.Authors = slices.Clone(*p.Authors)
	}
	if p.Year != nil {
		out.Year = *p.Year
	}
	if p.Venue != nil {
		out.Venue = *p.Venue
	}
	if p.DOI != nil {
		out.DOI = *p.DOI
	}
	if p.Abstract != nil {
		out.Abstract = *p.Abstract
	}
	if p.URL != nil {
		out.URL = *p.URL
	}
	if p.Tags != nil {
		out.Tags = slices.Clone(*p.Tags)
	}
	return out
}

// Field names used by patches, diffs and CSV columns.
const (
	FieldTitle    = "title"
	FieldAuthors  = "authors"
	FieldYear     = "year"
	FieldVenue    = "venue"
	FieldDOI      = "doi"
	FieldAbstract = "abstract"
	FieldURL      = "url"
	FieldTags     = "tags"
)

// PatchableFields lists every field a Patch can carry.
var PatchableFields = []string{
	FieldTitle, FieldAuthors, FieldYear, FieldVenue, FieldDOI, FieldAbstract, FieldURL, FieldTags,
}
