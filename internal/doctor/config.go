package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/errors"
)

// ConfigFileCheck reports which config file is in effect. Running on
// defaults is fine, so a missing file is only a warning.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Config file not readable: " + c.ConfigPath,
			Suggestion: "Check the path given to --config",
		}
	}

	if path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No config file, using defaults",
			Suggestion: "Run 'rterm init' to create " + config.ConfigFileName,
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Config file: " + path,
	}
}

// Fix writes a default config in the current directory.
func (c *ConfigFileCheck) Fix() error {
	path := c.ConfigPath
	if path == "" {
		path = config.ConfigFileName
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return config.Write(path, config.DefaultConfig())
}

// ConfigSchemaCheck loads the effective config and validates it.
type ConfigSchemaCheck struct {
	ConfigPath string
}

func (c *ConfigSchemaCheck) Name() string     { return "config_schema" }
func (c *ConfigSchemaCheck) Category() string { return "CONFIG" }

func (c *ConfigSchemaCheck) Run() CheckResult {
	cfg, _, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Failed to load config",
			Suggestion: "Check the YAML syntax in your config file",
		}
	}

	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "Schema error: " + firstLine(err),
			Suggestion: "Fix the configuration errors in your " + config.ConfigFileName,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Schema valid",
	}
}

func (c *ConfigSchemaCheck) Fix() error {
	return nil // Schema issues require manual intervention
}

// LogFileCheck verifies log.file can be opened for appending.
type LogFileCheck struct {
	ConfigPath string
}

func (c *LogFileCheck) Name() string     { return "log_file" }
func (c *LogFileCheck) Category() string { return "CONFIG" }

func (c *LogFileCheck) Run() CheckResult {
	cfg, _, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusPass, Message: "Config load error"}
	}

	if cfg.Log.File == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "Logging disabled",
		}
	}

	path := config.ExpandTilde(cfg.Log.File)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot write log file %s", path),
			Suggestion: fmt.Sprintf("Create %s or change log.file", filepath.Dir(path)),
		}
	}
	_ = f.Close()

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Logging %s to %s", cfg.Log.Level, path),
	}
}

func (c *LogFileCheck) Fix() error {
	return nil
}

// NewConfigChecks creates all config-related checks.
func NewConfigChecks(configPath string) []Check {
	return []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigSchemaCheck{ConfigPath: configPath},
		&LogFileCheck{ConfigPath: configPath},
	}
}

// firstLine returns the headline of err without the rendered detail.
func firstLine(err error) string {
	var rErr *errors.Error
	if errors.As(err, &rErr) {
		return rErr.Message
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
