package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .rterm.yaml configuration file.
type Config struct {
	Version  int            `yaml:"version" mapstructure:"version"`
	Terminal TerminalConfig `yaml:"terminal" mapstructure:"terminal"`
	Timeouts TimeoutConfig  `yaml:"timeouts" mapstructure:"timeouts"`
	SSH      SSHConfig      `yaml:"ssh" mapstructure:"ssh"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// TerminalConfig controls the pseudo-terminal requested for interactive shells.
type TerminalConfig struct {
	// Type is the TERM value sent with the pty request.
	Type string `yaml:"type" mapstructure:"type"`

	// Cols and Rows are the initial dimensions. A TTY on the local side
	// overrides these with its real size.
	Cols int `yaml:"cols" mapstructure:"cols"`
	Rows int `yaml:"rows" mapstructure:"rows"`
}

// TimeoutConfig bounds every operation that waits on the remote.
type TimeoutConfig struct {
	// Connect covers TCP dial plus the SSH handshake.
	Connect time.Duration `yaml:"connect" mapstructure:"connect"`

	// Exec bounds one-shot commands (ssh-exec).
	Exec time.Duration `yaml:"exec" mapstructure:"exec"`

	// Stream bounds streaming commands (ssh-run).
	Stream time.Duration `yaml:"stream" mapstructure:"stream"`

	// Pending is how long connection parameters staged by `ssh` stay
	// usable by a later `ssh-login`.
	Pending time.Duration `yaml:"pending" mapstructure:"pending"`
}

// SSHConfig holds transport and authentication policy.
type SSHConfig struct {
	// StrictHostKeyChecking verifies host keys against KnownHosts.
	// When false any host key is accepted (its fingerprint is still recorded).
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`

	// KnownHosts is the known_hosts file used when StrictHostKeyChecking is on.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`

	// UseAgent lets ssh-key-login fall back to keys held by ssh-agent.
	UseAgent bool `yaml:"use_agent" mapstructure:"use_agent"`

	// DefaultPort is used when `ssh` is given no -p flag and no ssh_config Port.
	DefaultPort int `yaml:"default_port" mapstructure:"default_port"`
}

// LogConfig controls the structured log. Logs never go to the terminal.
type LogConfig struct {
	// Level: "debug", "info", "warn", or "error".
	Level string `yaml:"level" mapstructure:"level"`

	// File is where log lines are written. Empty disables logging.
	File string `yaml:"file" mapstructure:"file"`

	// Format: "json" or "console".
	Format string `yaml:"format" mapstructure:"format"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Terminal: TerminalConfig{
			Type: "xterm-256color",
			Cols: 80,
			Rows: 24,
		},
		Timeouts: TimeoutConfig{
			Connect: 10 * time.Second,
			Exec:    60 * time.Second,
			Stream:  300 * time.Second,
			Pending: 2 * time.Minute,
		},
		SSH: SSHConfig{
			StrictHostKeyChecking: false,
			KnownHosts:            "~/.ssh/known_hosts",
			UseAgent:              true,
			DefaultPort:           22,
		},
		Log: LogConfig{
			Level:  "info",
			File:   "",
			Format: "json",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
