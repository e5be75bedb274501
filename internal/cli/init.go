package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Where to write; defaults to ./.rterm.yaml
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use defaults
}

var (
	initForce          bool
	initPath           string
	initNonInteractive bool
)

// initCmd creates a new .rterm.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .rterm.yaml configuration",
	Long: `Create a .rterm.yaml file with sensible defaults.

Asks for the terminal type, host key policy and log file unless run
non-interactively (--non-interactive, no TTY, or CI set).

Examples:
  rterm init
  rterm init --force
  rterm init --path ~/.config/rterm/config.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(InitOptions{
			Path:           initPath,
			Overwrite:      initForce,
			NonInteractive: initNonInteractive || !stdinIsTerminal() || os.Getenv("CI") != "",
		}, cmd.OutOrStdout())
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	initCmd.Flags().StringVar(&initPath, "path", "", "write the config here instead of ./"+config.ConfigFileName)
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "skip prompts and write defaults")
	rootCmd.AddCommand(initCmd)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Init creates a new configuration file.
func Init(opts InitOptions, out io.Writer) error {
	configPath := opts.Path
	if configPath == "" {
		configPath = filepath.Join(".", config.ConfigFileName)
	}
	configPath = config.ExpandTilde(configPath)

	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", configPath),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", configPath)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if !opts.NonInteractive {
		if err := promptConfig(cfg); err != nil {
			return err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), configPath)
	return nil
}

// promptConfig asks for the settings people most often change.
func promptConfig(cfg *config.Config) error {
	port := strconv.Itoa(cfg.SSH.DefaultPort)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Terminal type").
				Description("TERM sent to the remote shell").
				Value(&cfg.Terminal.Type),
			huh.NewInput().
				Title("Default SSH port").
				Value(&port).
				Validate(func(s string) error {
					p, err := strconv.Atoi(s)
					if err != nil || p < 1 || p > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Verify host keys against known_hosts?").
				Value(&cfg.SSH.StrictHostKeyChecking),
			huh.NewInput().
				Title("Log file").
				Description("Leave empty to disable logging").
				Value(&cfg.Log.File),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Run with --non-interactive to write defaults")
	}

	cfg.SSH.DefaultPort, _ = strconv.Atoi(port)
	return nil
}
