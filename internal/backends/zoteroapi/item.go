package zoteroapi

import (
	"strconv"
	"time"

	"github.com/espace/zotsync/internal/backends/zotero"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/rows"
)

// item is the JSON envelope of a Zotero item.
type item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    itemData `json:"data"`
}

type itemData struct {
	Key              string    `json:"key,omitempty"`
	Version          int       `json:"version,omitempty"`
	ItemType         string    `json:"itemType"`
	Title            string    `json:"title"`
	Creators         []creator `json:"creators"`
	Date             string    `json:"date"`
	PublicationTitle string    `json:"publicationTitle"`
	ProceedingsTitle string    `json:"proceedingsTitle"`
	BookTitle        string    `json:"bookTitle"`
	Publisher        string    `json:"publisher"`
	University       string    `json:"university"`
	Institution      string    `json:"institution"`
	DOI              string    `json:"DOI"`
	AbstractNote     string    `json:"abstractNote"`
	URL              string    `json:"url"`
	Extra            string    `json:"extra"`
	Tags             []tag     `json:"tags"`
	DateAdded        string    `json:"dateAdded"`
	DateModified     string    `json:"dateModified"`
}

type creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

type tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
}

func (d itemData) venue() string {
	switch zotero.VenueField(d.ItemType) {
	case "proceedingsTitle":
		return d.ProceedingsTitle
	case "bookTitle":
		return d.BookTitle
	case "publisher":
		return d.Publisher
	case "university":
		return d.University
	case "institution":
		return d.Institution
	}
	return d.PublicationTitle
}

func (d itemData) doi() string {
	if d.DOI != "" {
		return d.DOI
	}
	return zotero.ExtraDOI(d.Extra)
}

func (d itemData) creators() []zotero.Creator {
	out := make([]zotero.Creator, 0, len(d.Creators))
	for _, c := range d.Creators {
		if c.Name != "" {
			out = append(out, zotero.Creator{Type: c.CreatorType, Last: c.Name, Single: true})
			continue
		}
		out = append(out, zotero.Creator{Type: c.CreatorType, First: c.FirstName, Last: c.LastName})
	}
	return out
}

func toCreators(cs []zotero.Creator) []creator {
	out := make([]creator, 0, len(cs))
	for _, c := range cs {
		if c.Single {
			out = append(out, creator{CreatorType: c.Type, Name: c.Last})
			continue
		}
		out = append(out, creator{CreatorType: c.Type, FirstName: c.First, LastName: c.Last})
	}
	return out
}

func tagsFor(names []string) []tag {
	out := make([]tag, 0, len(names))
	for _, n := range names {
		out = append(out, tag{Tag: n})
	}
	return out
}

// toRecord converts an item into a record.
func (it item) toRecord() records.Record {
	d := it.Data
	tags := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		tags = append(tags, t.Tag)
	}
	if len(tags) == 0 {
		tags = nil
	}
	modified, _ := time.Parse(time.RFC3339, d.DateModified)
	return records.Record{
		ID:       it.Key,
		Version:  strconv.Itoa(it.Version),
		Modified: modified,
		Fields: records.Fields{
			ItemType: d.ItemType,
			Title:    d.Title,
			Authors:  zotero.Authors(d.creators()),
			Year:     rows.GuessYear(d.Date),
			Venue:    d.venue(),
			DOI:      d.doi(),
			Abstract: d.AbstractNote,
			URL:      d.URL,
			Tags:     tags,
		},
	}
}

// createData builds the write payload of a new item.
func createData(f records.Fields) map[string]any {
	itemType := f.ItemType
	if itemType == "" {
		itemType = constants.DefaultItemType
	}
	data := map[string]any{
		"itemType":     itemType,
		"title":        f.Title,
		"creators":     toCreators(zotero.ReplaceAuthors(f.Authors, nil)),
		"abstractNote": f.Abstract,
		"url":          f.URL,
		"tags":         tagsFor(f.Tags),
	}
	if f.Year != 0 {
		data["date"] = strconv.Itoa(f.Year)
	}
	if f.Venue != "" {
		data[zotero.VenueField(itemType)] = f.Venue
	}
	if f.DOI != "" {
		if zotero.HasDOIField(itemType) {
			data["DOI"] = f.DOI
		} else {
			data["extra"] = zotero.WithExtraDOI("", f.DOI)
		}
	}
	return data
}

// needsCurrent reports whether building the patch payload needs the
// stored item: venue and DOI placement depend on its type, and author
// updates keep its other creators.
func needsCurrent(p records.Patch) bool {
	return p.Venue != nil || p.DOI != nil || p.Authors != nil
}

// patchData builds a PATCH payload. current is only read when
// needsCurrent reports true.
func patchData(p records.Patch, current itemData) map[string]any {
	data := map[string]any{}
	if p.Title != nil {
		data["title"] = *p.Title
	}
	if p.Authors != nil {
		data["creators"] = toCreators(zotero.ReplaceAuthors(*p.Authors, current.creators()))
	}
	if p.Year != nil {
		date := ""
		if *p.Year != 0 {
			date = strconv.Itoa(*p.Year)
		}
		data["date"] = date
	}
	if p.Venue != nil {
		data[zotero.VenueField(current.ItemType)] = *p.Venue
	}
	if p.DOI != nil {
		if zotero.HasDOIField(current.ItemType) {
			data["DOI"] = *p.DOI
		} else {
			data["extra"] = zotero.WithExtraDOI(current.Extra, *p.DOI)
		}
	}
	if p.Abstract != nil {
		data["abstractNote"] = *p.Abstract
	}
	if p.URL != nil {
		data["url"] = *p.URL
	}
	if p.Tags != nil {
		data["tags"] = tagsFor(*p.Tags)
	}
	return data
}
