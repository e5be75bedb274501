package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/doctor"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/ui"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"github.com/spf13/cobra"
)

var (
	doctorJSON bool
	doctorFix  bool
)

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config and local SSH setup",
	Long: `Run local preflight checks: the config file and its schema, the log
destination, SSH keys and their permissions, ssh-agent, known_hosts and
~/.ssh/config. No remote host is contacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.OutOrStdout(), cfgFile, sshutil.DefaultSSHConfigPath(), doctorFix, doctorJSON)
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "attempt automatic fixes where possible")
	rootCmd.AddCommand(doctorCmd)
}

// collectChecks builds the check list. SSH checks use the effective config,
// falling back to defaults when it cannot be loaded (the schema check
// reports that).
func collectChecks(cfgPath, sshConfigPath string) []doctor.Check {
	cfg, _, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	checks := doctor.NewConfigChecks(cfgPath)
	return append(checks, doctor.NewSSHChecks(cfg, sshConfigPath)...)
}

func runDoctor(out io.Writer, cfgPath, sshConfigPath string, fix, asJSON bool) error {
	checks := collectChecks(cfgPath, sshConfigPath)
	results := doctor.RunAll(checks)

	var fixed []string
	if fix {
		var err error
		fixed, err = doctor.FixAll(checks, results)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Automatic fix failed", "Fix the remaining issues by hand")
		}
		if len(fixed) > 0 {
			results = doctor.RunAll(checks)
		}
	}

	if asJSON {
		if err := writeDoctorJSON(out, results); err != nil {
			return err
		}
	} else {
		writeDoctorText(out, results, fixed, fix)
	}

	if doctor.HasFailures(results) {
		return errors.New(errors.ErrConfig, doctor.Summary(results), "Address the failed checks above")
	}
	return nil
}

func writeDoctorJSON(out io.Writer, results []doctor.CheckResult) error {
	output := DoctorOutput{}
	for _, cat := range doctor.Categories {
		if rs := doctor.ByCategory(results, cat); len(rs) > 0 {
			output.Categories = append(output.Categories, CategoryOutput{Name: cat, Results: rs})
		}
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func writeDoctorText(out io.Writer, results []doctor.CheckResult, fixed []string, fixRequested bool) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out, headerStyle.Render("rterm diagnostic report"))
	fmt.Fprintln(out)

	for _, category := range doctor.Categories {
		rs := doctor.ByCategory(results, category)
		if len(rs) == 0 {
			continue
		}
		fmt.Fprintln(out, headerStyle.Render(category))
		for _, r := range rs {
			writeCheckResult(out, r)
		}
		fmt.Fprintln(out)
	}

	if len(fixed) > 0 {
		fmt.Fprintf(out, "Fixed: %s\n\n", strings.Join(fixed, ", "))
	}

	summary := doctor.Summary(results)
	counts := doctor.CountByStatus(results)
	if counts[doctor.StatusWarn]+counts[doctor.StatusFail] == 0 {
		fmt.Fprintf(out, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), summary)
		return
	}
	fmt.Fprintf(out, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), summary)
	if doctor.FixableCount(results) > 0 && !fixRequested {
		fmt.Fprintf(out, "\n  Run with %s to attempt automatic fixes where possible.\n", ui.MutedStyle().Render("--fix"))
	}
}

func writeCheckResult(out io.Writer, result doctor.CheckResult) {
	var symbol string
	var style lipgloss.Style

	switch result.Status {
	case doctor.StatusPass:
		symbol, style = ui.SymbolComplete, ui.SuccessStyle()
	case doctor.StatusWarn:
		symbol, style = ui.SymbolComplete, ui.WarningStyle()
	default:
		symbol, style = ui.SymbolFail, ui.ErrorStyle()
	}

	fmt.Fprintf(out, "  %s %s\n", style.Render(symbol), result.Message)
	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		fmt.Fprintf(out, "    %s\n", ui.MutedStyle().Render(result.Suggestion))
	}
}
