// Package dedupe groups near-duplicate records.
//
// Records are compared pairwise on a normalized key. Two records are linked
// when they share a DOI or when their score reaches the threshold, and the
// clusters are the connected components of that graph. Components are not
// cliques: A~B and B~C put A and C together even when A and C score below
// the threshold.
package dedupe

import (
	"context"
	"unicode/utf8"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/records"
)

// Cluster is a set of at least two records judged duplicates.
// Scores[i][j] is the pairwise score of Members[i] and Members[j].
type Cluster struct {
	Members []records.Record `json:"members" yaml:"members"`
	Scores  [][]int          `json:"scores" yaml:"scores"`
}

// IDs returns the member identifiers in order.
func (c Cluster) IDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// MinScore is the lowest pairwise score inside the cluster. It can fall
// below the threshold when members are chained through an intermediate.
func (c Cluster) MinScore() int {
	lowest := 100
	for i := range c.Scores {
		for j := i + 1; j < len(c.Scores[i]); j++ {
			lowest = min(lowest, c.Scores[i][j])
		}
	}
	return lowest
}

// Engine clusters records at a fixed threshold.
type Engine struct {
	threshold int
}

// New returns an engine. The threshold must lie in [0,100].
func New(threshold int) (*Engine, error) {
	if threshold < 0 || threshold > 100 {
		return nil, errors.NewInvalidThresholdError(threshold)
	}
	return &Engine{threshold: threshold}, nil
}

// Threshold returns the configured threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Cluster groups recs. The input must be the complete in-scope set:
// components computed over a partial set can miss bridging records.
// Clusters are ordered by their first member's input position and members
// keep input order. Singletons are dropped.
func (e *Engine) Cluster(ctx context.Context, recs []records.Record) ([]Cluster, error) {
	logger := logging.FromContext(ctx)

	keys := make([]Key, len(recs))
	lens := make([]int, len(recs))
	for i, r := range recs {
		keys[i] = KeyOf(r.Fields)
		lens[i] = utf8.RuneCountInString(keys[i].Title)
	}

	uf := newUnionFind(len(recs))

	byDOI := make(map[string]int)
	for i, k := range keys {
		if k.DOI == "" {
			continue
		}
		if first, ok := byDOI[k.DOI]; ok {
			uf.union(first, i)
		} else {
			byDOI[k.DOI] = i
		}
	}

	compared := 0
	for i := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if keys[i].Title == "" {
			continue
		}
		for j := i + 1; j < len(keys); j++ {
			if !e.comparable(keys[i], keys[j]) || uf.find(i) == uf.find(j) {
				continue
			}
			if upperBound(keys[i], keys[j], lens[i], lens[j]) < float64(e.threshold)-0.5 {
				continue
			}
			compared++
			if Score(keys[i], keys[j]) >= e.threshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	var order []int
	for i := range recs {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	var clusters []Cluster
	for _, root := range order {
		idx := groups[root]
		if len(idx) < 2 {
			continue
		}
		c := Cluster{
			Members: make([]records.Record, len(idx)),
			Scores:  make([][]int, len(idx)),
		}
		for a, i := range idx {
			c.Members[a] = recs[i]
			c.Scores[a] = make([]int, len(idx))
		}
		for a := range idx {
			c.Scores[a][a] = 100
			for b := a + 1; b < len(idx); b++ {
				s := Score(keys[idx[a]], keys[idx[b]])
				c.Scores[a][b], c.Scores[b][a] = s, s
			}
		}
		clusters = append(clusters, c)
	}

	logger.Debug().
		Int("records", len(recs)).
		Int("compared", compared).
		Int("clusters", len(clusters)).
		Int("threshold", e.threshold).
		Msg("Clustered records")
	return clusters, nil
}

// comparable reports whether a and b can be scored. Records without a
// title only join clusters through their DOI.
func (e *Engine) comparable(a, b Key) bool {
	return a.Title != "" && b.Title != ""
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
