package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCompletionCommand replaces cobra's generated completion command so
// that every shell script is written to the command's output.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Long: `Generate the autocompletion script for the given shell.

To load completions in the current bash session:

  source <(zotsync completion bash)

To load them for every new zsh session:

  zotsync completion zsh > "${fpath[1]}/_zotsync"`,
		Args:                  cobra.ExactArgs(1),
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		DisableFlagsInUseLine: true,
		RunE: func(c *cobra.Command, args []string) error {
			root, w := c.Root(), c.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(w, true)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(w)
			}
			return fmt.Errorf("unsupported shell %q", args[0])
		},
	}
}

// RegisterFlagCompletions completes the enumerated persistent flags.
func RegisterFlagCompletions(root *cobra.Command) {
	fixed := func(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		}
	}
	_ = root.RegisterFlagCompletionFunc("format", fixed("table", "json", "yaml", "markdown"))
	_ = root.RegisterFlagCompletionFunc("backend", fixed("api", "local", "sqlite"))
	_ = root.RegisterFlagCompletionFunc("library-type", fixed("user", "group"))
	_ = root.RegisterFlagCompletionFunc("auth-scheme", fixed("header", "bearer", "query", "none"))
	_ = root.RegisterFlagCompletionFunc("log-level", fixed("trace", "debug", "info", "warn", "error"))
}
