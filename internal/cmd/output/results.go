package output

import (
	"fmt"
	"io"

	"github.com/espace/zotsync/internal/cmd/table"
	"github.com/espace/zotsync/pkg/sync"
)

type section struct {
	title string
	data  table.Data
}

// FormatResult writes a command result. Table and markdown output print
// the counts followed by the plan or changeset and any conflicts; JSON
// and YAML encode the whole result.
func FormatResult(w io.Writer, format Format, r *sync.Result) error {
	if r == nil {
		return nil
	}
	switch format {
	case FormatJSON, FormatYAML:
		return NewFormatter(format).Format(w, r)
	case FormatMarkdown:
		return markdownResult(w, r)
	}

	f := &TableFormatter{}
	if err := f.Format(w, table.CountsToTableData(r)); err != nil {
		return err
	}

	for _, s := range detailSections(r) {
		if _, err := fmt.Fprintf(w, "\n%s:\n", s.title); err != nil {
			return err
		}
		if err := f.Format(w, s.data); err != nil {
			return err
		}
	}
	return nil
}

func markdownResult(w io.Writer, r *sync.Result) error {
	f := &MarkdownFormatter{Title: "zotsync " + r.Command.String()}
	if err := f.Format(w, table.CountsToTableData(r)); err != nil {
		return err
	}
	for _, s := range detailSections(r) {
		f.Title = s.title
		if err := f.Format(w, s.data); err != nil {
			return err
		}
	}
	return nil
}

// detailSections lists the tables shown after the counts.
func detailSections(r *sync.Result) []section {
	var sections []section
	if r.Plan != nil && r.Plan.Mutations() > 0 {
		sections = append(sections, section{changesTitle(r), table.PlanToTableData(r.Plan)})
	}
	if r.Changes != nil && r.Changes.HasChanges() {
		sections = append(sections, section{changesTitle(r), table.ChangesToTableData(r.Changes)})
	}
	if len(r.Conflicts)+len(r.Malformed) > 0 {
		sections = append(sections, section{"Problems", table.ConflictsToTableData(r)})
	}
	return sections
}

func changesTitle(r *sync.Result) string {
	if r.DryRun {
		return "Planned changes"
	}
	return "Changes"
}
