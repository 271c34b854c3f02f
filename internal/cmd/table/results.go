// Package table converts command results into table data.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/sync"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// maxTitle bounds titles in table cells.
const maxTitle = 60

// CountsToTableData renders the non-zero counts of a result, plus the
// counts every command of its kind reports even when zero.
func CountsToTableData(r *sync.Result) Data {
	c := r.Counts
	type count struct {
		name   string
		value  int
		always bool
	}
	export := r.Command == sync.CommandExport
	imp := r.Command == sync.CommandImport
	clean := r.Command == sync.CommandClean
	all := []count{
		{"Fetched", c.Fetched, true},
		{"Exported", c.Exported, export},
		{"Created", c.Created, imp},
		{"Updated", c.Updated, imp},
		{"Skipped", c.Skipped, imp},
		{"Clusters", c.Clusters, clean},
		{"Merged", c.Merged, clean},
		{"Deleted", c.Deleted, clean},
		{"Conflicted", c.Conflicted, false},
		{"Malformed", c.Malformed, false},
		{"Ambiguous", c.Ambiguous, false},
	}

	rows := make([][]string, 0, len(all)+2)
	rows = append(rows, []string{"Command", r.Command.String()})
	if r.DryRun {
		rows = append(rows, []string{"Dry run", "yes"})
	}
	for _, n := range all {
		if n.value == 0 && !n.always {
			continue
		}
		rows = append(rows, []string{n.name, strconv.Itoa(n.value)})
	}
	if r.Output != "" {
		rows = append(rows, []string{"Output", r.Output})
	}
	if r.Failed {
		rows = append(rows, []string{"Failed while", r.State.String()})
	}

	return Data{
		Headers:         []string{"Metric", "Count"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// PlanToTableData lists the mutating actions of a plan in order.
func PlanToTableData(p *planner.Plan) Data {
	var rows [][]string
	for _, a := range p.Actions {
		if !a.Kind.Mutating() {
			continue
		}
		detail := ""
		switch a.Kind {
		case planner.ActionMergeTags:
			detail = "from " + strings.Join(a.Sources, ", ")
		case planner.ActionRemoveTags:
			detail = strings.Join(a.Tags, ", ")
		}
		rows = append(rows, []string{
			clusterLabel(a.Cluster),
			a.Kind.String(),
			a.RecordID,
			Truncate(a.Title, maxTitle),
			detail,
		})
	}
	return Data{
		Headers: []string{"Cluster", "Action", "Record", "Title", "Detail"},
		Rows:    rows,
	}
}

func clusterLabel(i int) string {
	if i < 0 {
		return "-"
	}
	return strconv.Itoa(i + 1)
}

// ChangesToTableData lists the records an import creates and the fields
// it changes on existing ones.
func ChangesToTableData(c *differ.Changeset) Data {
	var rows [][]string
	for _, in := range c.Added {
		rows = append(rows, []string{
			strconv.Itoa(in.Index), "create", "-", "title", "", Truncate(in.Draft.Title, maxTitle),
		})
	}
	for _, u := range c.Updated {
		for _, ch := range u.Changes {
			rows = append(rows, []string{
				strconv.Itoa(u.Index), string(ch.Type), u.ID, ch.Path,
				Truncate(ch.OldValue, maxTitle), Truncate(ch.NewValue, maxTitle),
			})
		}
	}
	return Data{
		Headers:         []string{"Row", "Change", "Record", "Field", "Old", "New"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight},
	}
}

// ConflictsToTableData lists conflicts and malformed rows together.
func ConflictsToTableData(r *sync.Result) Data {
	rows := make([][]string, 0, len(r.Conflicts)+len(r.Malformed))
	for _, c := range r.Conflicts {
		row := "-"
		if c.Row > 0 {
			row = strconv.Itoa(c.Row)
		}
		rows = append(rows, []string{row, "conflict", c.RecordID, c.Action + ": " + c.Message})
	}
	for _, m := range r.Malformed {
		rows = append(rows, []string{strconv.Itoa(m.Row), "malformed", "-", fmt.Sprintf("%s: %s", m.Column, m.Message)})
	}
	return Data{
		Headers: []string{"Row", "Problem", "Record", "Message"},
		Rows:    rows,
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
