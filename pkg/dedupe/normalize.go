package dedupe

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/espace/zotsync/pkg/records"
)

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// fold strips diacritics: "Müller" becomes "Muller".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle lower-cases, folds diacritics, turns punctuation into
// spaces and collapses whitespace.
func NormalizeTitle(s string) string {
	s = strings.ToLower(fold(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDOI lower-cases a DOI and strips resolver prefixes.
func NormalizeDOI(s string) string {
	d := strings.ToLower(strings.TrimSpace(s))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(d, p) {
			d = d[len(p):]
			break
		}
	}
	return strings.TrimSpace(d)
}

// Surname extracts the family name from "Last, First" or "First Last".
func Surname(author string) string {
	a := strings.TrimSpace(author)
	if i := strings.Index(a, ","); i >= 0 {
		return NormalizeTitle(a[:i])
	}
	fields := strings.Fields(a)
	if len(fields) == 0 {
		return ""
	}
	return NormalizeTitle(fields[len(fields)-1])
}

// Key is the normalized comparison form of a record.
type Key struct {
	Title    string
	Surnames []string
	DOI      string
}

// KeyOf normalizes a record's identifying fields.
func KeyOf(f records.Fields) Key {
	k := Key{
		Title: NormalizeTitle(f.Title),
		DOI:   NormalizeDOI(f.DOI),
	}
	for _, a := range f.Authors {
		if s := Surname(a); s != "" {
			k.Surnames = append(k.Surnames, s)
		}
	}
	slices.Sort(k.Surnames)
	k.Surnames = slices.Compact(k.Surnames)
	return k
}

// Identity is an exact-match key: the DOI when present, otherwise the
// title and surnames. It is empty for records with no usable title or DOI.
func (k Key) Identity() string {
	if k.DOI != "" {
		return "doi:" + k.DOI
	}
	if k.Title == "" {
		return ""
	}
	return "title:" + k.Title + "|" + strings.Join(k.Surnames, ",")
}

// Identities lists every exact-match key of k, strongest first: the DOI
// identity, then the title identity.
func (k Key) Identities() []string {
	var ids []string
	if k.DOI != "" {
		ids = append(ids, "doi:"+k.DOI)
	}
	if k.Title != "" {
		ids = append(ids, "title:"+k.Title+"|"+strings.Join(k.Surnames, ","))
	}
	return ids
}
