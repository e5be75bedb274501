package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/rterm/internal/config"
)

func TestConfigFileCheck(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("explicit path missing", func(t *testing.T) {
		check := &ConfigFileCheck{ConfigPath: filepath.Join(tmpDir, "nonexistent.yaml")}
		result := check.Run()

		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})

	t.Run("config found", func(t *testing.T) {
		cfgPath := filepath.Join(tmpDir, config.ConfigFileName)
		if err := config.Write(cfgPath, config.DefaultConfig()); err != nil {
			t.Fatal(err)
		}

		result := (&ConfigFileCheck{ConfigPath: cfgPath}).Run()

		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
		if !strings.Contains(result.Message, cfgPath) {
			t.Errorf("expected message to name %s, got %q", cfgPath, result.Message)
		}
	})

	t.Run("fix writes defaults", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), config.ConfigFileName)
		check := &ConfigFileCheck{ConfigPath: cfgPath}

		if err := check.Fix(); err != nil {
			t.Fatalf("fix failed: %v", err)
		}
		if result := check.Run(); result.Status != StatusPass {
			t.Errorf("expected StatusPass after fix, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("name and category", func(t *testing.T) {
		check := &ConfigFileCheck{}
		if check.Name() != "config_file" {
			t.Errorf("expected name 'config_file', got %s", check.Name())
		}
		if check.Category() != "CONFIG" {
			t.Errorf("expected category 'CONFIG', got %s", check.Category())
		}
	})
}

func TestConfigSchemaCheck(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("valid schema", func(t *testing.T) {
		cfgPath := filepath.Join(tmpDir, "valid.yaml")
		if err := os.WriteFile(cfgPath, []byte("version: 1\nterminal:\n  type: vt100\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		result := (&ConfigSchemaCheck{ConfigPath: cfgPath}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("invalid terminal size", func(t *testing.T) {
		cfgPath := filepath.Join(tmpDir, "invalid.yaml")
		if err := os.WriteFile(cfgPath, []byte("version: 1\nterminal:\n  cols: 0\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		result := (&ConfigSchemaCheck{ConfigPath: cfgPath}).Run()
		if result.Status != StatusFail {
			t.Fatalf("expected StatusFail, got %v", result.Status)
		}
		if !strings.Contains(result.Message, "terminal.cols") {
			t.Errorf("expected message to name terminal.cols, got %q", result.Message)
		}
		if strings.Contains(result.Message, "\n") {
			t.Errorf("expected a single-line message, got %q", result.Message)
		}
	})

	t.Run("broken yaml", func(t *testing.T) {
		cfgPath := filepath.Join(tmpDir, "broken.yaml")
		if err := os.WriteFile(cfgPath, []byte("terminal: [unclosed\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		result := (&ConfigSchemaCheck{ConfigPath: cfgPath}).Run()
		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})
}

func TestLogFileCheck(t *testing.T) {
	writeConfig := func(t *testing.T, logFile string) string {
		t.Helper()
		cfg := config.DefaultConfig()
		cfg.Log.File = logFile
		path := filepath.Join(t.TempDir(), config.ConfigFileName)
		if err := config.Write(path, cfg); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("disabled", func(t *testing.T) {
		result := (&LogFileCheck{ConfigPath: writeConfig(t, "")}).Run()
		if result.Status != StatusPass || result.Message != "Logging disabled" {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("writable", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "rterm.log")
		result := (&LogFileCheck{ConfigPath: writeConfig(t, logPath)}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected StatusPass, got %v: %s", result.Status, result.Message)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "no", "such", "dir", "rterm.log")
		result := (&LogFileCheck{ConfigPath: writeConfig(t, logPath)}).Run()
		if result.Status != StatusFail {
			t.Errorf("expected StatusFail, got %v", result.Status)
		}
	})
}

func TestNewConfigChecks(t *testing.T) {
	checks := NewConfigChecks("")
	if len(checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(checks))
	}
	for _, c := range checks {
		if c.Category() != "CONFIG" {
			t.Errorf("check %s has category %s", c.Name(), c.Category())
		}
	}
}
