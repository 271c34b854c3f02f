// Package planner turns duplicate clusters into an ordered list of
// repository mutations. Building a plan never touches the repository.
package planner

import (
	"fmt"
	"slices"
	"strings"

	"github.com/espace/zotsync/pkg/dedupe"
	"github.com/espace/zotsync/pkg/records"
	"github.com/espace/zotsync/pkg/tagcodec"
)

// ActionKind names a planned mutation.
type ActionKind string

const (
	// ActionKeep marks the canonical record of a cluster. It is not a mutation.
	ActionKeep ActionKind = "keep"
	// ActionMergeTags replaces the kept record's tags with the cluster union.
	ActionMergeTags ActionKind = "merge-tags"
	// ActionDelete removes a non-canonical member.
	ActionDelete ActionKind = "delete"
	// ActionRemoveTags replaces a record's tags with a reduced set.
	ActionRemoveTags ActionKind = "remove-tags"
)

// String returns the string representation of an action kind.
func (k ActionKind) String() string {
	return string(k)
}

// Mutating reports whether applying the action writes to the repository.
func (k ActionKind) Mutating() bool {
	return k != ActionKeep
}

// Action is one planned step.
type Action struct {
	Kind     ActionKind `json:"kind" yaml:"kind"`
	RecordID string     `json:"record_id" yaml:"record_id"`
	Version  string     `json:"version" yaml:"version"`
	Title    string     `json:"title,omitempty" yaml:"title,omitempty"`
	// Sources are the members whose tags are merged (merge-tags only).
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	// Tags is the complete tag set after the action (merge-tags, remove-tags).
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Changed is false when Tags equals the record's current tags.
	Changed bool `json:"changed" yaml:"changed"`
	// Cluster is the index of the cluster the action belongs to, or -1.
	Cluster int `json:"cluster" yaml:"cluster"`
}

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a.Kind {
	case ActionMergeTags:
		return fmt.Sprintf("%s %s <- [%s]", a.Kind, a.RecordID, strings.Join(a.Sources, ", "))
	default:
		return fmt.Sprintf("%s %s", a.Kind, a.RecordID)
	}
}

// Plan is an ordered action list.
type Plan struct {
	Actions  []Action `json:"actions" yaml:"actions"`
	Clusters int      `json:"clusters" yaml:"clusters"`
}

// Count returns the number of actions of kind.
func (p *Plan) Count(kind ActionKind) int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Mutations returns the number of actions that would write.
func (p *Plan) Mutations() int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind.Mutating() && (a.Kind == ActionDelete || a.Changed) {
			n++
		}
	}
	return n
}

// Planner builds resolution plans.
type Planner struct {
	policy Policy
}

// New returns a planner. An empty policy selects DefaultPolicy.
func New(policy Policy) *Planner {
	if len(policy) == 0 {
		policy = DefaultPolicy()
	}
	return &Planner{policy: policy}
}

// Policy returns the selection policy.
func (p *Planner) Policy() Policy {
	return p.policy
}

// Canonical returns the index of the member to keep.
func (p *Planner) Canonical(c dedupe.Cluster) int {
	best := 0
	for i := 1; i < len(c.Members); i++ {
		if p.policy.Compare(c.Members[i], c.Members[best]) < 0 {
			best = i
		}
	}
	return best
}

// Plan emits, per cluster: keep, merge-tags into the kept record, then one
// delete per other member in cluster order.
func (p *Planner) Plan(clusters []dedupe.Cluster) *Plan {
	plan := &Plan{Clusters: len(clusters)}
	for ci, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		keep := p.Canonical(c)
		kept := c.Members[keep]

		var sources []string
		var others [][]string
		for i, m := range c.Members {
			if i == keep {
				continue
			}
			sources = append(sources, m.ID)
			others = append(others, m.Tags)
		}
		union := records.UnionTags(kept.Tags, others...)

		plan.Actions = append(plan.Actions,
			Action{Kind: ActionKeep, RecordID: kept.ID, Version: kept.Version, Title: kept.Title, Cluster: ci},
			Action{
				Kind:     ActionMergeTags,
				RecordID: kept.ID,
				Version:  kept.Version,
				Title:    kept.Title,
				Sources:  sources,
				Tags:     union,
				Changed:  len(union) != len(kept.Tags),
				Cluster:  ci,
			},
		)
		for i, m := range c.Members {
			if i == keep {
				continue
			}
			plan.Actions = append(plan.Actions,
				Action{Kind: ActionDelete, RecordID: m.ID, Version: m.Version, Title: m.Title, Cluster: ci})
		}
	}
	return plan
}

// ResetStatus plans the removal of every prefixed tag from recs. Records
// without such tags get no action. Deleted ids are skipped so a combined
// plan never touches a record twice.
func ResetStatus(recs []records.Record, codec *tagcodec.Codec, deleted []string) []Action {
	var out []Action
	for _, r := range recs {
		if slices.Contains(deleted, r.ID) {
			continue
		}
		if len(codec.Prefixed(r.Tags)) == 0 {
			continue
		}
		out = append(out, Action{
			Kind:     ActionRemoveTags,
			RecordID: r.ID,
			Version:  r.Version,
			Title:    r.Title,
			Tags:     codec.Strip(r.Tags),
			Changed:  true,
			Cluster:  -1,
		})
	}
	return out
}

// Deleted lists the ids the plan deletes.
func (p *Plan) Deleted() []string {
	var ids []string
	for _, a := range p.Actions {
		if a.Kind == ActionDelete {
			ids = append(ids, a.RecordID)
		}
	}
	return ids
}
