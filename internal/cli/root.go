package cli

import (
	"fmt"
	"os"

	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
)

// rootCmd starts the interactive console when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "rterm",
	Short: "Terminal with remote SSH sessions",
	Long: `rterm is a line-oriented terminal with a built-in remote session.

Stage a connection with 'ssh user@host [-p port]', authenticate with
'ssh-login <password>' or 'ssh-key-login', then run remote commands,
open an interactive shell or transfer files over SFTP.

Type 'help' inside rterm for the full command list.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd.Context(), consoleOptions{
			ConfigPath: cfgFile,
			Verbose:    verbose,
			NoColor:    noColor,
			In:         os.Stdin,
			Out:        os.Stdout,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .rterm.yaml in this or a parent directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging (written to log.file)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		if _, ok := err.(*errors.Error); !ok {
			fmt.Fprintln(os.Stderr)
		}
		os.Exit(1)
	}
}
