package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/rterm/internal/errors"
)

// MaxTerminalDimension bounds terminal.cols and terminal.rows.
const MaxTerminalDimension = 500

// ValidColorModes are the accepted output.color values.
var ValidColorModes = []string{"auto", "always", "never"}

// ValidLogLevels are the accepted log.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but rterm only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest rterm release.")
	}

	if err := validateTerminal(cfg.Terminal); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'terminal' section in your .rterm.yaml.")
	}

	if err := validateTimeouts(cfg.Timeouts); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Use durations like 10s, 2m, or 500ms.")
	}

	if cfg.SSH.DefaultPort < 1 || cfg.SSH.DefaultPort > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("ssh.default_port %d is out of range", cfg.SSH.DefaultPort),
			"Pick a port between 1 and 65535.")
	}

	if cfg.SSH.StrictHostKeyChecking && strings.TrimSpace(cfg.SSH.KnownHosts) == "" {
		return errors.New(errors.ErrConfig,
			"ssh.strict_host_key_checking is on but ssh.known_hosts is empty",
			"Point ssh.known_hosts at a file, e.g. ~/.ssh/known_hosts.")
	}

	if !contains(ValidLogLevels, cfg.Log.Level) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("log.level '%s' isn't valid", cfg.Log.Level),
			fmt.Sprintf("Use one of: %s", strings.Join(ValidLogLevels, ", ")))
	}

	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("log.format '%s' isn't valid", cfg.Log.Format),
			"Use 'json' or 'console'.")
	}

	if !contains(ValidColorModes, cfg.Output.Color) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("output.color '%s' isn't valid", cfg.Output.Color),
			fmt.Sprintf("Use one of: %s", strings.Join(ValidColorModes, ", ")))
	}

	return nil
}

func validateTerminal(term TerminalConfig) error {
	if strings.TrimSpace(term.Type) == "" {
		return fmt.Errorf("terminal.type can't be empty")
	}
	if term.Cols < 1 || term.Cols > MaxTerminalDimension {
		return fmt.Errorf("terminal.cols %d must be between 1 and %d", term.Cols, MaxTerminalDimension)
	}
	if term.Rows < 1 || term.Rows > MaxTerminalDimension {
		return fmt.Errorf("terminal.rows %d must be between 1 and %d", term.Rows, MaxTerminalDimension)
	}
	return nil
}

func validateTimeouts(t TimeoutConfig) error {
	checks := []struct {
		name  string
		value time.Duration
	}{
		{"timeouts.connect", t.Connect},
		{"timeouts.exec", t.Exec},
		{"timeouts.stream", t.Stream},
		{"timeouts.pending", t.Pending},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be positive", c.name)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
