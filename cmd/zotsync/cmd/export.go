package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/espace/zotsync/internal/appcontext"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/sync"
)

// NewExportCommand creates the export command.
func NewExportCommand(app appcontext.Interface) *cobra.Command {
	var onlyPrefix bool

	cmd := &cobra.Command{
		Use:     "export [file]",
		GroupID: "core",
		Short:   "Write the library to a review CSV file",
		Long: `Export writes every record of the library as one CSV row. The included
and excluded columns are derived from the review tags; records carrying
both an include and an exclude tag are flagged as ambiguous.

Without a file argument the CSV is written to a timestamped file in the
current directory. "-" writes it to stdout and the summary to stderr.`,
		Example: `  zotsync export review.csv                 # Export the whole library
  zotsync export - --only-prefix > todo.csv # Only records already screened
  zotsync export --dry-run                  # Count what would be exported`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			path := fmt.Sprintf("zotero-export-%s.csv", time.Now().Format(constants.TimeFormatFilename))
			if len(args) == 1 {
				path = args[0]
			}

			opts := append(app.SyncOptions(), sync.WithOnlyPrefix(onlyPrefix))
			s, err := newSyncer(ctx, app, opts)
			if err != nil {
				return err
			}

			var res *sync.Result
			if path == stdio {
				res, err = s.ExportTo(ctx, c.OutOrStdout())
			} else {
				res, err = s.Export(ctx, path)
			}
			return report(ctx, app, summaryWriter(c, path == stdio), res, err)
		},
	}

	cmd.Flags().BoolVar(&onlyPrefix, "only-prefix", false, "only export records carrying a tag with the review prefix")

	return cmd
}
