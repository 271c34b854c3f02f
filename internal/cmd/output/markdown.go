package output

import (
	"fmt"
	"io"

	md "github.com/nao1215/markdown"

	"github.com/espace/zotsync/internal/cmd/table"
)

// MarkdownFormatter outputs GitHub-flavored markdown tables, suited to
// review reports kept next to the screening files.
type MarkdownFormatter struct {
	// Title, when set, is written as a level-two heading first.
	Title string
}

// Format implements the Formatter interface for markdown output.
func (f *MarkdownFormatter) Format(w io.Writer, data any) error {
	var td table.Data
	switch v := data.(type) {
	case table.Data:
		td = v
	case *table.Data:
		if v == nil {
			return nil
		}
		td = *v
	default:
		var ok bool
		if td, ok = structToTableData(data); !ok {
			return fmt.Errorf("markdown output needs table data, got %T", data)
		}
	}
	doc := md.NewMarkdown(w)
	if f.Title != "" {
		doc.H2(f.Title).LF()
	}
	doc.Table(md.TableSet{Header: td.Headers, Rows: td.Rows}).LF()
	return doc.Build()
}
