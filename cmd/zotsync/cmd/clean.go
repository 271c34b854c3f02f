package cmd

import (
	"github.com/spf13/cobra"

	"github.com/espace/zotsync/internal/appcontext"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/sync"
)

// NewCleanCommand creates the clean command. The dedupe, threshold and
// policy flags are bound to configuration keys, so they reach the
// command through app.SyncOptions.
func NewCleanCommand(app appcontext.Interface) *cobra.Command {
	var resetStatus, onlyPrefix bool

	cmd := &cobra.Command{
		Use:     "clean",
		GroupID: "core",
		Short:   "Merge duplicate records and reset review status",
		Long: `Clean groups near-duplicate records into clusters by DOI and by fuzzy
similarity of title and authors. In every cluster one record is kept,
chosen by --policy, and receives the union of the tags of the others,
which are then deleted.

Clusters are connected components: two records can share a cluster
through a third even when they are not similar themselves.

--reset-status also strips every tag carrying the review prefix.`,
		Example: `  zotsync clean --dry-run                        # Show the plan
  zotsync clean --threshold 95                   # Stricter matching
  zotsync clean --policy oldest,doi              # Prefer the oldest record
  zotsync clean --dedupe=false --reset-status    # Only reset review tags`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			opts := append(app.SyncOptions(),
				sync.WithResetStatus(resetStatus),
				sync.WithOnlyPrefix(onlyPrefix),
			)
			s, err := newSyncer(ctx, app, opts)
			if err != nil {
				return err
			}
			res, err := s.Clean(ctx)
			return report(ctx, app, c.OutOrStdout(), res, err)
		},
	}

	cmd.Flags().Bool("dedupe", true, "cluster and merge duplicates")
	cmd.Flags().Int("threshold", constants.DefaultThreshold, "similarity threshold between 0 and 100")
	cmd.Flags().String("policy", constants.DefaultPolicy, "canonical selection order of doi, completeness, oldest")
	cmd.Flags().BoolVar(&resetStatus, "reset-status", false, "strip every tag with the review prefix")
	cmd.Flags().BoolVar(&onlyPrefix, "only-prefix", false, "only consider records carrying a tag with the review prefix")

	return cmd
}
