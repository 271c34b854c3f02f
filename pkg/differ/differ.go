// Package differ matches incoming drafts against existing records and
// detects the field changes an import would make.
package differ

import (
	"slices"
	"strconv"
	"strings"

	"github.com/espace/zotsync/pkg/dedupe"
	"github.com/espace/zotsync/pkg/records"
)

// Incoming is a draft read from row Index.
type Incoming struct {
	Index int           `json:"row" yaml:"row"`
	Draft records.Draft `json:"draft" yaml:"draft"`
}

// Match pairs an incoming draft with the record it targets.
type Match struct {
	Incoming
	// Existing is nil when no record matched.
	Existing *records.Record
	// By is "id" or "identity" for matched drafts.
	By string
	// DuplicateOf is the row index of an earlier draft that claimed the
	// same record or identity, or zero.
	DuplicateOf int
}

// Duplicate reports whether an earlier row already claimed the target.
func (m Match) Duplicate() bool {
	return m.DuplicateOf != 0
}

// Differ handles change detection between records and drafts.
type Differ interface {
	// Match resolves every draft against existing, in input order.
	Match(existing []records.Record, incoming []Incoming) []Match

	// Changes turns resolved matches into a changeset.
	Changes(matches []Match) *Changeset

	// Records is Match followed by Changes.
	Records(existing []records.Record, incoming []Incoming) *Changeset

	// Record compares one record with a draft and returns nil when they agree.
	Record(existing records.Record, draft records.Draft) *RecordUpdate
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields     map[string]bool
	identityMatching bool
	orderedTags      bool
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields:     make(map[string]bool),
		identityMatching: true,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Match resolves drafts by id first, then by identity key (DOI before
// title and surnames). A record claimed by an earlier row, or a new
// identity already seen, marks the later row as a duplicate.
func (diff *differ) Match(existing []records.Record, incoming []Incoming) []Match {
	byID := make(map[string]int, len(existing))
	byIdentity := make(map[string]int, len(existing))
	for i, r := range existing {
		byID[r.ID] = i
		if !diff.identityMatching {
			continue
		}
		for _, id := range dedupe.KeyOf(r.Fields).Identities() {
			if _, taken := byIdentity[id]; !taken {
				byIdentity[id] = i
			}
		}
	}

	claimed := make(map[int]int)    // existing index -> row index
	newSeen := make(map[string]int) // identity of a new draft -> row index

	matches := make([]Match, 0, len(incoming))
	for _, in := range incoming {
		m := Match{Incoming: in}
		target := -1

		if in.Draft.ID != "" {
			if i, ok := byID[in.Draft.ID]; ok {
				target, m.By = i, "id"
			}
		}
		key := dedupe.KeyOf(in.Draft.Fields)
		if target < 0 && diff.identityMatching {
			for _, id := range key.Identities() {
				i, ok := byIdentity[id]
				if !ok || conflictingDOI(key, existing[i]) {
					continue
				}
				target, m.By = i, "identity"
				break
			}
		}

		if target >= 0 {
			rec := existing[target]
			m.Existing = &rec
			if row, ok := claimed[target]; ok {
				m.DuplicateOf = row
			} else {
				claimed[target] = in.Index
			}
		} else if id := key.Identity(); id != "" && diff.identityMatching {
			if row, ok := newSeen[id]; ok {
				m.DuplicateOf = row
			} else {
				newSeen[id] = in.Index
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// conflictingDOI reports whether a title match would pair two works
// carrying different DOIs.
func conflictingDOI(key dedupe.Key, r records.Record) bool {
	other := dedupe.NormalizeDOI(r.DOI)
	return key.DOI != "" && other != "" && key.DOI != other
}

// Changes classifies matches as added, updated, unchanged or duplicate.
func (diff *differ) Changes(matches []Match) *Changeset {
	cs := &Changeset{
		Added:      []Incoming{},
		Updated:    []RecordUpdate{},
		Unchanged:  []Match{},
		Duplicates: []Match{},
	}
	for _, m := range matches {
		switch {
		case m.Duplicate():
			cs.Duplicates = append(cs.Duplicates, m)
		case m.Existing == nil:
			cs.Added = append(cs.Added, m.Incoming)
		default:
			if u := diff.Record(*m.Existing, m.Draft); u != nil {
				u.Index = m.Index
				cs.Updated = append(cs.Updated, *u)
			} else {
				cs.Unchanged = append(cs.Unchanged, m)
			}
		}
	}
	cs.Summary = calculateSummary(cs)
	return cs
}

// Records compares incoming drafts with existing records.
func (diff *differ) Records(existing []records.Record, incoming []Incoming) *Changeset {
	return diff.Changes(diff.Match(existing, incoming))
}

// Record compares a record with a draft.
func (diff *differ) Record(existing records.Record, draft records.Draft) *RecordUpdate {
	changes := []FieldChange{}
	var patch records.Patch

	str := func(field string, prev, next string, dst **string) {
		if prev == next || diff.ignoreFields[field] {
			return
		}
		v := next
		*dst = &v
		changes = append(changes, FieldChange{
			Path:     field,
			OldValue: truncateString(prev, 50),
			NewValue: truncateString(next, 50),
			Type:     changeType(prev == "", next == ""),
		})
	}

	str(records.FieldTitle, existing.Title, draft.Title, &patch.Title)

	if !diff.ignoreFields[records.FieldAuthors] && !slices.Equal(existing.Authors, draft.Authors) {
		v := slices.Clone(draft.Authors)
		patch.Authors = &v
		changes = append(changes, FieldChange{
			Path:     records.FieldAuthors,
			OldValue: strings.Join(existing.Authors, "; "),
			NewValue: strings.Join(draft.Authors, "; "),
			Type:     changeType(len(existing.Authors) == 0, len(draft.Authors) == 0),
		})
	}

	if !diff.ignoreFields[records.FieldYear] && existing.Year != draft.Year {
		v := draft.Year
		patch.Year = &v
		changes = append(changes, FieldChange{
			Path:     records.FieldYear,
			OldValue: formatYear(existing.Year),
			NewValue: formatYear(draft.Year),
			Type:     changeType(existing.Year == 0, draft.Year == 0),
		})
	}

	str(records.FieldVenue, existing.Venue, draft.Venue, &patch.Venue)
	str(records.FieldDOI, existing.DOI, draft.DOI, &patch.DOI)
	str(records.FieldAbstract, existing.Abstract, draft.Abstract, &patch.Abstract)
	str(records.FieldURL, existing.URL, draft.URL, &patch.URL)

	if !diff.ignoreFields[records.FieldTags] && !diff.sameTags(existing.Tags, draft.Tags) {
		v := slices.Clone(draft.Tags)
		patch.Tags = &v
		added, removed := tagDelta(existing.Tags, draft.Tags)
		changes = append(changes, FieldChange{
			Path:     records.FieldTags,
			OldValue: strings.Join(removed, ", "),
			NewValue: strings.Join(added, ", "),
			Type:     changeType(len(existing.Tags) == 0, len(draft.Tags) == 0),
		})
	}

	if len(changes) == 0 {
		return nil
	}

	return &RecordUpdate{
		ID:       existing.ID,
		Version:  existing.Version,
		Existing: existing,
		Patch:    patch,
		Changes:  changes,
	}
}

func (diff *differ) sameTags(a, b []string) bool {
	if diff.orderedTags {
		return slices.Equal(a, b)
	}
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// tagDelta lists the tags only in next (added) and only in prev (removed).
func tagDelta(prev, next []string) (added, removed []string) {
	for _, t := range next {
		if !slices.Contains(prev, t) {
			added = append(added, t)
		}
	}
	for _, t := range prev {
		if !slices.Contains(next, t) {
			removed = append(removed, t)
		}
	}
	return added, removed
}

func changeType(oldEmpty, newEmpty bool) ChangeType {
	switch {
	case oldEmpty && !newEmpty:
		return ChangeTypeAdd
	case !oldEmpty && newEmpty:
		return ChangeTypeRemove
	}
	return ChangeTypeUpdate
}

func formatYear(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
