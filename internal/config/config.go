// Package config loads irfacts settings from defaults, an optional
// .irfacts.yaml and IRFACTS_* environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// FileName is the project config file looked up in the working directory.
	FileName = ".irfacts.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "IRFACTS_"

	// DefaultBigArity is the parameter-plus-return count above which function
	// types use the N-ary FunctionN form.
	DefaultBigArity = 22
)

// Config holds all irfacts settings.
type Config struct {
	// Store selects the fact store backend: badger, sqlite or memory.
	Store string `koanf:"store"`

	// DBPath is the store location. Empty means the backend default under
	// the project directory.
	DBPath string `koanf:"db_path"`

	BigArity int    `koanf:"big_arity"`
	Jobs     int    `koanf:"jobs"`
	LogLevel string `koanf:"log_level"`

	// FaultFile aborts the run when extraction reaches this file. Test only.
	FaultFile string `koanf:"fault_file"`

	// InputExt is the suffix of declaration-tree files the walker picks up.
	InputExt string `koanf:"input_glob_ext"`

	// Dir is the project directory the config was loaded for.
	Dir string `koanf:"-"`

	// File is the config file that was read, or empty.
	File string `koanf:"-"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"store":          "badger",
		"db_path":        "",
		"big_arity":      DefaultBigArity,
		"jobs":           1,
		"log_level":      "info",
		"fault_file":     "",
		"input_glob_ext": ".ir.json",
	}
}

// Load reads the configuration for the project in dir.
func Load(dir string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	var used string
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err == nil {
		if err := k.Load(file.Provider(candidate), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", candidate, err)
		}
		used = candidate
	}

	// 3. Environment: IRFACTS_BIG_ARITY -> big_arity
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Dir = dir
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Store {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid store %q: want badger, sqlite or memory", c.Store)
	}
	if c.BigArity < 1 {
		return fmt.Errorf("big_arity must be positive, got %d", c.BigArity)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	return nil
}

// StorePath returns DBPath, or the backend's default location under Dir.
func (c *Config) StorePath() string {
	if c.DBPath != "" {
		if filepath.IsAbs(c.DBPath) {
			return c.DBPath
		}
		return filepath.Join(c.Dir, c.DBPath)
	}
	if c.Store == "sqlite" {
		return filepath.Join(c.Dir, ".irfacts", "facts.db")
	}
	return filepath.Join(c.Dir, ".irfacts", "badger")
}
