package app

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/espace/zotsync/cmd/zotsync/cmd"
	"github.com/espace/zotsync/internal/cmd/output"
	"github.com/espace/zotsync/pkg/constants"
	"github.com/espace/zotsync/pkg/logging"
)

// Execute runs the zotsync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "zotsync",
		Short:   "Sync a Zotero library with systematic-review CSV files",
		Version: a.version,
		Long: `zotsync moves bibliographic records between a Zotero library and the flat
CSV files used by systematic-review screening tools.

  export   writes the library to CSV, with include/exclude flags derived
           from review tags
  import   upserts rows back into the library, updating review tags
  clean    merges duplicate records and optionally resets review status

Every command honors --dry-run: the work is computed and reported, and
nothing is written.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.zotsync.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml, markdown")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")

	flags.String("backend", BackendAPI, "library backend: api, local, sqlite")
	flags.String("library-id", "", "Zotero user or group id")
	flags.String("library-type", constants.DefaultLibraryType, "library type: user or group")
	flags.String("api-key", "", "Zotero API key")
	flags.String("api-url", "", "Zotero API base URL")
	flags.String("auth-scheme", "header", "API key transport: header, bearer, query, none")
	flags.String("db-path", constants.DefaultSQLitePath, "path to zotero.sqlite (sqlite backend)")
	flags.String("tag-prefix", constants.DefaultTagPrefix, "prefix of review status tags")
	flags.String("delimiter", constants.DefaultDelimiter, "separator of authors and tags inside a cell")
	flags.Int("page-size", constants.DefaultPageSize, "records fetched per request")
	flags.Bool("dry-run", false, "compute and report changes without writing anything")
	flags.Duration("timeout", 0, "abort the command after this long (0 means no limit)")

	rootCmd.SetVersionTemplate("zotsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs. It rebuilds the
// configuration with the parsed flags on top and attaches a logger
// carrying a fresh run id to the command context.
func (a *App) setupCommand(c *cobra.Command, _ []string) error {
	config, err := LoadConfig(c.Flags())
	if err != nil {
		return err
	}
	if _, err := output.ParseFormat(config.Format); err != nil {
		return err
	}
	a.config = config

	logger := NewLogger(config)
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, &logger)
	ctx = logging.WithRunID(ctx, uuid.NewString())
	a.logger = logging.FromContext(ctx)
	c.SetContext(ctx)

	if config.ConfigFile != "" {
		a.logger.Debug().Str("file", config.ConfigFile).Msg("Loaded config file")
	}
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(cmd.NewExportCommand(a))
	rootCmd.AddCommand(cmd.NewImportCommand(a))
	rootCmd.AddCommand(cmd.NewCleanCommand(a))
	rootCmd.AddCommand(a.newVersionCommand())
	rootCmd.AddCommand(cmd.NewCompletionCommand())
	cmd.RegisterFlagCompletions(rootCmd)
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
