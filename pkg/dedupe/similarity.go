package dedupe

import (
	"math"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Weights of the two sub-scores. The author weight only applies when
// both records list authors; otherwise the title carries the whole score.
const (
	TitleWeight  = 0.8
	AuthorWeight = 0.2
)

// dmp has no diff deadline so scores do not depend on machine speed.
var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}()

// TitleSimilarity is the share of matching characters between two
// normalized titles, in [0,1].
func TitleSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	equal := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			equal += utf8.RuneCountInString(d.Text)
		}
	}
	return 2 * float64(equal) / float64(total)
}

// AuthorOverlap is the Jaccard index of two sorted surname sets.
func AuthorOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Score rates two keys in [0,100]. A shared DOI scores 100.
func Score(a, b Key) int {
	if a.DOI != "" && a.DOI == b.DOI {
		return 100
	}
	return toScore(combine(TitleSimilarity(a.Title, b.Title), a, b))
}

func combine(title float64, a, b Key) float64 {
	if len(a.Surnames) == 0 || len(b.Surnames) == 0 {
		return title
	}
	return TitleWeight*title + AuthorWeight*AuthorOverlap(a.Surnames, b.Surnames)
}

func toScore(v float64) int {
	return int(math.Round(100 * v))
}

// upperBound is the best score two keys could reach given only their
// title lengths.
func upperBound(a, b Key, la, lb int) float64 {
	if la+lb == 0 {
		return 100
	}
	title := 2 * float64(min(la, lb)) / float64(la+lb)
	if len(a.Surnames) == 0 || len(b.Surnames) == 0 {
		return 100 * title
	}
	return 100 * (TitleWeight*title + AuthorWeight)
}
