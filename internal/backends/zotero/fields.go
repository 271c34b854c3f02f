// Package zotero holds the item-type rules shared by the Web API and
// SQLite backends: where the venue and DOI live, how creators are named,
// and how item keys look.
package zotero

import (
	"strings"

	"github.com/google/uuid"
)

// Skipped reports whether items of this type are never bibliographic records.
func Skipped(itemType string) bool {
	switch itemType {
	case "attachment", "note", "annotation":
		return true
	}
	return false
}

// VenueField returns the Zotero field that holds the venue for an item type.
func VenueField(itemType string) string {
	switch itemType {
	case "conferencePaper":
		return "proceedingsTitle"
	case "bookSection":
		return "bookTitle"
	case "book":
		return "publisher"
	case "thesis":
		return "university"
	case "report":
		return "institution"
	}
	return "publicationTitle"
}

// HasDOIField reports whether the item type has a native DOI field. Other
// types keep the DOI as a "DOI: ..." line in extra.
func HasDOIField(itemType string) bool {
	switch itemType {
	case "journalArticle", "conferencePaper", "preprint", "dataset", "standard":
		return true
	}
	return false
}

// ExtraDOI finds a "DOI: ..." line in the extra field.
func ExtraDOI(extra string) string {
	for _, l := range strings.Split(extra, "\n") {
		if k, v, ok := strings.Cut(l, ":"); ok && strings.EqualFold(strings.TrimSpace(k), "doi") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// WithExtraDOI replaces or appends the DOI line of extra. An empty doi
// removes it.
func WithExtraDOI(extra, doi string) string {
	var lines []string
	for _, l := range strings.Split(extra, "\n") {
		k, _, ok := strings.Cut(l, ":")
		if (ok && strings.EqualFold(strings.TrimSpace(k), "doi")) || l == "" {
			continue
		}
		lines = append(lines, l)
	}
	if doi != "" {
		lines = append(lines, "DOI: "+doi)
	}
	return strings.Join(lines, "\n")
}

// Creator is one name of an item.
type Creator struct {
	Type  string
	First string
	Last  string
	// Single marks a one-field name (institutions, consortia) held in Last.
	Single bool
}

// Author is the creator type of authors.
const Author = "author"

// Display renders the creator as "Last, First", or the single name.
func (c Creator) Display() string {
	if c.Single || c.First == "" {
		return c.Last
	}
	return c.Last + ", " + c.First
}

// ParseAuthor is the inverse of Display for an author.
func ParseAuthor(name string) Creator {
	last, first, ok := strings.Cut(name, ",")
	if !ok {
		return Creator{Type: Author, Last: strings.TrimSpace(name), Single: true}
	}
	return Creator{Type: Author, Last: strings.TrimSpace(last), First: strings.TrimSpace(first)}
}

// Authors lists the display names of the author creators. Items without
// any author fall back to every creator.
func Authors(creators []Creator) []string {
	var out []string
	for _, c := range creators {
		if c.Type == Author {
			out = append(out, c.Display())
		}
	}
	if len(out) == 0 {
		for _, c := range creators {
			out = append(out, c.Display())
		}
	}
	return out
}

// ReplaceAuthors returns the new authors followed by every non-author
// creator of current.
func ReplaceAuthors(authors []string, current []Creator) []Creator {
	out := make([]Creator, 0, len(authors)+len(current))
	for _, a := range authors {
		out = append(out, ParseAuthor(a))
	}
	for _, c := range current {
		if c.Type != Author {
			out = append(out, c)
		}
	}
	return out
}

const keyAlphabet = "23456789ABCDEFGHIJKLMNPQRSTUVWXYZ"

// NewKey returns a random eight-character item key in Zotero's alphabet.
func NewKey() string {
	u := uuid.New()
	var b strings.Builder
	for i := range 8 {
		b.WriteByte(keyAlphabet[int(u[i])%len(keyAlphabet)])
	}
	return b.String()
}
