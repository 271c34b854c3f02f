package differ

import (
	"fmt"
	"strings"

	"github.com/espace/zotsync/pkg/records"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a value was set where there was none.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a value was replaced.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a value was cleared.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Path     string     `json:"path" yaml:"path"`
	OldValue string     `json:"old_value" yaml:"old_value"`
	NewValue string     `json:"new_value" yaml:"new_value"`
	Type     ChangeType `json:"type" yaml:"type"`
}

// RecordUpdate represents an update to an existing record.
type RecordUpdate struct {
	Index    int            `json:"row" yaml:"row"`
	ID       string         `json:"id" yaml:"id"`
	Version  string         `json:"version" yaml:"version"`
	Existing records.Record `json:"-" yaml:"-"`
	Patch    records.Patch  `json:"patch" yaml:"patch"`
	Changes  []FieldChange  `json:"changes" yaml:"changes"`
}

// Changeset represents what an import would do.
type Changeset struct {
	Added      []Incoming       `json:"added" yaml:"added"`
	Updated    []RecordUpdate   `json:"updated" yaml:"updated"`
	Unchanged  []Match          `json:"-" yaml:"-"`
	Duplicates []Match          `json:"-" yaml:"-"`
	Summary    ChangesetSummary `json:"summary" yaml:"summary"`
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	Added        int `json:"added" yaml:"added"`
	Updated      int `json:"updated" yaml:"updated"`
	Unchanged    int `json:"unchanged" yaml:"unchanged"`
	Duplicates   int `json:"duplicates" yaml:"duplicates"`
	TotalChanges int `json:"total_changes" yaml:"total_changes"`
}

// calculateSummary computes the summary for a changeset.
func calculateSummary(c *Changeset) ChangesetSummary {
	return ChangesetSummary{
		Added:        len(c.Added),
		Updated:      len(c.Updated),
		Unchanged:    len(c.Unchanged),
		Duplicates:   len(c.Duplicates),
		TotalChanges: len(c.Added) + len(c.Updated),
	}
}

// HasChanges returns true if the changeset would write anything.
func (c *Changeset) HasChanges() bool {
	return c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.TotalChanges == 0
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string
	if len(c.Added) > 0 {
		parts = append(parts, fmt.Sprintf("%d added", len(c.Added)))
	}
	if len(c.Updated) > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", len(c.Updated)))
	}
	if len(c.Unchanged) > 0 {
		parts = append(parts, fmt.Sprintf("%d unchanged", len(c.Unchanged)))
	}
	if len(c.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicate rows", len(c.Duplicates)))
	}
	return fmt.Sprintf("Changeset: %s (Total: %d changes)", strings.Join(parts, ", "), c.Summary.TotalChanges)
}

// ApplyStrategy represents how to apply changes.
type ApplyStrategy string

const (
	// ApplyAll applies additions and updates.
	ApplyAll ApplyStrategy = "all"

	// ApplyUpdatesOnly only applies updates to existing records.
	ApplyUpdatesOnly ApplyStrategy = "updates-only"

	// ApplyAdditionsOnly only creates new records.
	ApplyAdditionsOnly ApplyStrategy = "additions-only"
)

// ParseApplyStrategy validates a strategy name. Empty means ApplyAll.
func ParseApplyStrategy(s string) (ApplyStrategy, bool) {
	switch ApplyStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ApplyAll:
		return ApplyAll, true
	case ApplyUpdatesOnly:
		return ApplyUpdatesOnly, true
	case ApplyAdditionsOnly:
		return ApplyAdditionsOnly, true
	}
	return "", false
}

// Filter filters the changeset based on the apply strategy.
// Dropped changes are counted by Skipped.
func (c *Changeset) Filter(strategy ApplyStrategy) *Changeset {
	filtered := &Changeset{
		Added:      []Incoming{},
		Updated:    []RecordUpdate{},
		Unchanged:  c.Unchanged,
		Duplicates: c.Duplicates,
	}

	switch strategy {
	case ApplyAll, "":
		return c

	case ApplyUpdatesOnly:
		filtered.Updated = c.Updated

	case ApplyAdditionsOnly:
		filtered.Added = c.Added
	}

	filtered.Summary = calculateSummary(filtered)

	return filtered
}

// Skipped counts the changes a filtered changeset dropped from c.
func (c *Changeset) Skipped(filtered *Changeset) int {
	return c.Summary.TotalChanges - filtered.Summary.TotalChanges
}
