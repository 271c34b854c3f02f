package sync

import (
	"fmt"
	"strings"

	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/planner"
)

// Counts summarizes what a command did, or would do in a dry run.
type Counts struct {
	Fetched    int `json:"fetched" yaml:"fetched"`
	Exported   int `json:"exported" yaml:"exported"`
	Created    int `json:"created" yaml:"created"`
	Updated    int `json:"updated" yaml:"updated"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Deleted    int `json:"deleted" yaml:"deleted"`
	Merged     int `json:"merged" yaml:"merged"`
	Conflicted int `json:"conflicted" yaml:"conflicted"`
	Malformed  int `json:"malformed" yaml:"malformed"`
	Ambiguous  int `json:"ambiguous" yaml:"ambiguous"`
	Clusters   int `json:"clusters" yaml:"clusters"`
}

// Conflict is an action skipped because its record changed or vanished
// since it was fetched.
type Conflict struct {
	RecordID string `json:"record_id" yaml:"record_id"`
	Action   string `json:"action" yaml:"action"`
	Row      int    `json:"row,omitempty" yaml:"row,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// MalformedRow is an input row that could not be mapped.
type MalformedRow struct {
	Row     int    `json:"row" yaml:"row"`
	Column  string `json:"column" yaml:"column"`
	Message string `json:"message" yaml:"message"`
}

// Result represents the outcome of one command. It is returned even when
// the command fails, holding the counts reached so far.
type Result struct {
	Command   Command           `json:"command" yaml:"command"`
	DryRun    bool              `json:"dry_run" yaml:"dry_run"`
	State     State             `json:"state" yaml:"state"`
	Failed    bool              `json:"failed" yaml:"failed"`
	Output    string            `json:"output,omitempty" yaml:"output,omitempty"`
	Counts    Counts            `json:"counts" yaml:"counts"`
	Conflicts []Conflict        `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Malformed []MalformedRow    `json:"malformed,omitempty" yaml:"malformed,omitempty"`
	Plan      *planner.Plan     `json:"plan,omitempty" yaml:"plan,omitempty"`
	Changes   *differ.Changeset `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// HasChanges reports whether the command wrote, or would write, anything.
func (r *Result) HasChanges() bool {
	c := r.Counts
	return c.Created+c.Updated+c.Deleted+c.Merged > 0
}

// Summary returns a one-line human-readable summary.
func (r *Result) Summary() string {
	c := r.Counts
	var parts []string
	switch r.Command {
	case CommandExport:
		parts = append(parts, fmt.Sprintf("%d exported", c.Exported))
	case CommandImport:
		parts = append(parts,
			fmt.Sprintf("%d created", c.Created),
			fmt.Sprintf("%d updated", c.Updated),
			fmt.Sprintf("%d skipped", c.Skipped))
	case CommandClean:
		parts = append(parts,
			fmt.Sprintf("%d clusters", c.Clusters),
			fmt.Sprintf("%d merged", c.Merged),
			fmt.Sprintf("%d deleted", c.Deleted))
		if c.Updated > 0 {
			parts = append(parts, fmt.Sprintf("%d reset", c.Updated))
		}
	}
	if c.Conflicted > 0 {
		parts = append(parts, fmt.Sprintf("%d conflicted", c.Conflicted))
	}
	if c.Malformed > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed", c.Malformed))
	}
	if c.Ambiguous > 0 {
		parts = append(parts, fmt.Sprintf("%d ambiguous", c.Ambiguous))
	}

	summary := fmt.Sprintf("%s: %s", r.Command, strings.Join(parts, ", "))
	if r.DryRun {
		summary += " (Dry run)"
	}
	if r.Failed {
		summary += fmt.Sprintf(" (failed while %s)", r.State)
	}
	return summary
}
