// Package config holds decapod's YAML-backed configuration, following the
// teacher's DefaultConfig/Load/Save/applyEnvOverrides shape. Fields cover
// SQLite pool tuning, validate budgets, commit-often thresholds, protected
// branches, risk defaults, and workunit gate toggles rather than the
// teacher's LLM/shard settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"decapod/internal/logging"
)

// Config holds all decapod configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Storage  StorageConfig  `yaml:"storage"`
	Validate ValidateConfig `yaml:"validate"`
	Session  SessionConfig  `yaml:"session"`
	Risk     RiskConfig     `yaml:"risk"`
	Workunit WorkunitConfig `yaml:"workunit"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StorageConfig tunes internal/dbpool.
type StorageConfig struct {
	BusyTimeout  string `yaml:"busy_timeout"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxRetries   int    `yaml:"max_retries"`
}

// ValidateConfig tunes internal/validate.
type ValidateConfig struct {
	TimeoutSeconds       int  `yaml:"timeout_seconds"`
	SkipGitGates         bool `yaml:"skip_git_gates"`
	CommitOftenMaxDirty  int  `yaml:"commit_often_max_dirty_files"`
}

// SessionConfig tunes internal/session.
type SessionConfig struct {
	ProtectedBranches []string `yaml:"protected_branches"`
}

// RiskConfig seeds internal/plan's default risk map.
type RiskConfig struct {
	Zones []RiskZoneConfig `yaml:"zones"`
}

// RiskZoneConfig is one path-prefix risk zone.
type RiskZoneConfig struct {
	PathPrefix string `yaml:"path_prefix"`
	Level      string `yaml:"level"`
}

// WorkunitConfig toggles workunit gates.
type WorkunitConfig struct {
	RequireManifestForPublish bool `yaml:"require_manifest_for_publish"`
}

// LoggingConfig tunes internal/logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	DebugMode bool   `yaml:"debug_mode"`
	File      string `yaml:"file"`
}

// DefaultConfig returns decapod's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "decapod",
		Version: "0.1.0",

		Storage: StorageConfig{
			BusyTimeout:  "5s",
			MaxOpenConns: 4,
			MaxRetries:   8,
		},
		Validate: ValidateConfig{
			TimeoutSeconds:      60,
			SkipGitGates:        false,
			CommitOftenMaxDirty: 20,
		},
		Session: SessionConfig{
			ProtectedBranches: []string{"main", "master"},
		},
		Risk: RiskConfig{
			Zones: nil,
		},
		Workunit: WorkunitConfig{
			RequireManifestForPublish: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
			File:      "decapod.log",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file is absent, then applies DECAPOD_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: name=%s version=%s", cfg.Name, cfg.Version)
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies DECAPOD_-prefixed environment overrides,
// resolved from original_source's test suite since spec.md is silent on
// the exact variable names.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DECAPOD_VALIDATE_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Validate.TimeoutSeconds = secs
		}
	}
	if os.Getenv("DECAPOD_VALIDATE_SKIP_GIT_GATES") == "1" {
		c.Validate.SkipGitGates = true
	}
	if v := os.Getenv("DECAPOD_COMMIT_OFTEN_MAX_DIRTY_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Validate.CommitOftenMaxDirty = n
		}
	}
}

// GetValidateTimeout returns the validate pipeline's deadline as a duration.
func (c *Config) GetValidateTimeout() time.Duration {
	if c.Validate.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Validate.TimeoutSeconds) * time.Second
}

// GetBusyTimeout returns the storage pool's busy_timeout as a duration.
func (c *Config) GetBusyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Storage.BusyTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ProtectedBranchSet returns the session's protected branches as a set.
func (c *Config) ProtectedBranchSet() map[string]bool {
	out := make(map[string]bool, len(c.Session.ProtectedBranches))
	for _, b := range c.Session.ProtectedBranches {
		out[b] = true
	}
	return out
}

// Check verifies the configuration is internally consistent.
func (c *Config) Check() error {
	if c.Validate.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: validate.timeout_seconds must be positive")
	}
	if c.GetBusyTimeout() >= c.GetValidateTimeout() {
		return fmt.Errorf("config: storage.busy_timeout must be strictly below validate.timeout_seconds")
	}
	return nil
}
