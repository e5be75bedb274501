package config

import (
	"os"
	"path/filepath"

	"github.com/rileyhilliard/rterm/internal/errors"
	"gopkg.in/yaml.v3"
)

// Write serializes cfg as YAML to path, creating parent directories.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't encode config",
			"This is unexpected - please report it.")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create config directory: "+filepath.Dir(path),
			"Check directory permissions")
	}

	header := []byte("# rterm configuration. See 'rterm init --help'.\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write config file: "+path,
			"Check file permissions")
	}
	return nil
}
