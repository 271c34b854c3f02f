package cmd

import (
	"github.com/spf13/cobra"

	"github.com/espace/zotsync/internal/appcontext"
	"github.com/espace/zotsync/pkg/differ"
	"github.com/espace/zotsync/pkg/errors"
	"github.com/espace/zotsync/pkg/sync"
)

// importFlags holds the import-only flags.
type importFlags struct {
	strict       bool
	ignoreFields []string
	apply        string
}

// NewImportCommand creates the import command.
func NewImportCommand(app appcontext.Interface) *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:     "import <file>",
		GroupID: "core",
		Short:   "Upsert rows of a review CSV into the library",
		Long: `Import matches every row to a record by id, then by DOI, then by title
and first author, and applies the differences. Rows without a match are
created. Review status columns update the review tags; absent columns
leave their fields alone.

Importing the same file twice changes nothing the second time.
Malformed rows are reported and skipped unless --strict is given, in
which case nothing is written. "-" reads the CSV from stdin.`,
		Example: `  zotsync import screened.csv                  # Apply screening decisions
  zotsync import screened.csv --dry-run        # Preview the changes
  zotsync import asreview.csv --ignore-field abstract
  zotsync import new.csv --apply additions-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			strategy, ok := differ.ParseApplyStrategy(flags.apply)
			if !ok {
				return errors.NewValidationError("apply", flags.apply, "must be one of: all, updates-only, additions-only")
			}

			opts := append(app.SyncOptions(),
				sync.WithStrict(flags.strict),
				sync.WithIgnoreFields(flags.ignoreFields...),
				sync.WithApplyStrategy(strategy),
			)
			s, err := newSyncer(ctx, app, opts)
			if err != nil {
				return err
			}

			var res *sync.Result
			if args[0] == stdio {
				res, err = s.ImportFrom(ctx, c.InOrStdin())
			} else {
				res, err = s.Import(ctx, args[0])
			}
			return report(ctx, app, c.OutOrStdout(), res, err)
		},
	}

	cmd.Flags().BoolVar(&flags.strict, "strict", false, "abort without writing when any row is malformed")
	cmd.Flags().StringSliceVar(&flags.ignoreFields, "ignore-field", nil, "field never written by import (repeatable)")
	cmd.Flags().StringVar(&flags.apply, "apply", string(differ.ApplyAll), "changes to apply: all, updates-only, additions-only")

	return cmd
}
