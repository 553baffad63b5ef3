package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chorusdev/chorus/pkg/apperr"
	"github.com/pelletier/go-toml/v2"
)

const envConfigPath = "CHORUS_CONFIG"

// Load resolves the configuration path with the documented precedence
// (CLI flag, environment variable, default path) and loads it, migrating
// a legacy flat workflow-integration form in place if found.
//
// args is the process argument list excluding the program name (normally
// os.Args[1:]); it is parsed with the standard flag semantics: "--config
// path" and "--config=path" are both accepted, and "--" stops flag
// parsing.
func Load(args []string) (*Config, error) {
	path, err := cliConfigPath(args)
	if err != nil {
		return nil, err
	}
	if path != "" {
		return loadFile(path)
	}

	if envPath := os.Getenv(envConfigPath); envPath != "" {
		return loadFile(envPath)
	}

	defaultPath, err := defaultConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(defaultPath); statErr != nil {
		if err := bootstrapDefaultFile(defaultPath); err != nil {
			return nil, err
		}
	}
	return loadFile(defaultPath)
}

// cliConfigPath parses --config/-c from args without consuming any other
// flags the caller may define on the default flag.CommandLine set.
func cliConfigPath(args []string) (string, error) {
	fs := flag.NewFlagSet("chorus", flag.ContinueOnError)
	fs.SetOutput(discardWriter{})
	var path string
	fs.StringVar(&path, "config", "", "path to configuration file")
	fs.StringVar(&path, "c", "", "path to configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return "", apperr.Wrap(apperr.ConfigInvalid, "invalid command-line flags", err)
	}
	return path, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chorus", "config.toml"), nil
}

func bootstrapDefaultFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.ConfigInvalid, "failed to create config directory", err)
	}

	data, err := toml.Marshal(defaultConfig())
	if err != nil {
		return apperr.Wrap(apperr.ConfigInvalid, "failed to render default configuration", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ConfigInvalid, "failed to write default configuration", err)
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("failed to read config file %q", path), err)
	}

	migrated, err := migrateIfLegacy(path, raw)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(migrated, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("failed to parse config file %q", path), err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}
