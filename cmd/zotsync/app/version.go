package app

import (
	"github.com/spf13/cobra"

	"github.com/espace/zotsync/internal/cmd/output"
)

// versionInfo is printed by the version command.
type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	BuiltBy string `json:"built_by" yaml:"built_by"`
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			info := versionInfo{
				Version: a.version,
				Commit:  a.commit,
				Date:    a.date,
				BuiltBy: a.builtBy,
			}
			formatter := output.NewFormatter(output.Format(a.OutputFormat()))
			return formatter.Format(c.OutOrStdout(), info)
		},
	}
}
