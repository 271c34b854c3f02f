package planner

import (
	"strings"

	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/records"
)

// Criterion is one rule for choosing the canonical record of a cluster.
type Criterion string

// String returns the string representation of a criterion.
func (c Criterion) String() string {
	return string(c)
}

const (
	// CriterionDOI prefers records carrying a DOI.
	CriterionDOI Criterion = "doi"
	// CriterionCompleteness prefers records with more populated fields.
	CriterionCompleteness Criterion = "completeness"
	// CriterionOldest prefers the record modified first. Older entries are
	// presumed to be the original and newer ones imported duplicates.
	CriterionOldest Criterion = "oldest"
)

// Policy is an ordered list of criteria. Ties left by every criterion are
// broken by the smallest record id, so selection is always deterministic.
type Policy []Criterion

// DefaultPolicy returns doi, completeness, oldest.
func DefaultPolicy() Policy {
	return Policy{CriterionDOI, CriterionCompleteness, CriterionOldest}
}

// ParsePolicy reads a comma-separated criterion list.
func ParsePolicy(s string) (Policy, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultPolicy(), nil
	}
	var p Policy
	seen := make(map[Criterion]bool)
	for _, part := range strings.Split(s, ",") {
		c := Criterion(strings.ToLower(strings.TrimSpace(part)))
		switch c {
		case CriterionDOI, CriterionCompleteness, CriterionOldest:
		default:
			return nil, errors.NewValidationError("policy", s, "unknown criterion "+string(c))
		}
		if seen[c] {
			return nil, errors.NewValidationError("policy", s, "duplicate criterion "+string(c))
		}
		seen[c] = true
		p = append(p, c)
	}
	return p, nil
}

// String renders the policy in ParsePolicy form.
func (p Policy) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Compare returns a negative number when a should be kept over b.
func (p Policy) Compare(a, b records.Record) int {
	for _, c := range p {
		if d := c.compare(a, b); d != 0 {
			return d
		}
	}
	return strings.Compare(a.ID, b.ID)
}

func (c Criterion) compare(a, b records.Record) int {
	switch c {
	case CriterionDOI:
		return boolRank(a.HasDOI(), b.HasDOI())
	case CriterionCompleteness:
		return b.PopulatedFields() - a.PopulatedFields()
	case CriterionOldest:
		// an unknown timestamp ranks as newest
		switch {
		case a.Modified.Equal(b.Modified):
			return 0
		case a.Modified.IsZero():
			return 1
		case b.Modified.IsZero():
			return -1
		}
		return a.Modified.Compare(b.Modified)
	}
	return 0
}

func boolRank(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	}
	return 1
}
