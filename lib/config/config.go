// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for enclave-host.
type Config struct {
	// Paths configures the data layout.
	Paths PathsConfig `yaml:"paths"`

	// Log configures daemon logging.
	Log LogConfig `yaml:"log"`

	// Fetch configures artifact retrieval.
	Fetch FetchConfig `yaml:"fetch"`

	// Audit configures the decision audit log.
	Audit AuditConfig `yaml:"audit"`

	// Sandbox configures component execution.
	Sandbox SandboxConfig `yaml:"sandbox"`
}

// PathsConfig configures where the host keeps its durable state. All
// locations default to subpaths of Root; a file that relocates Root
// can carry the rest along with ${ENCLAVE_ROOT} expansion.
type PathsConfig struct {
	// Root is the base directory for enclave data.
	Root string `yaml:"root"`

	// Policies is the directory of per-component policy documents.
	Policies string `yaml:"policies"`

	// Secrets is the directory of per-component secret records.
	Secrets string `yaml:"secrets"`

	// Artifacts is the content-addressed artifact cache directory.
	Artifacts string `yaml:"artifacts"`

	// AuditDB is the SQLite audit database file.
	AuditDB string `yaml:"audit_db"`

	// Socket is the admin socket path.
	Socket string `yaml:"socket"`
}

// LogConfig configures daemon logging.
type LogConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	// Default: info.
	Level string `yaml:"level"`

	// Format selects the handler: json or text. Default: json.
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level string to a slog.Level.
// Unknown strings map to info; Validate rejects them earlier.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FetchConfig configures artifact retrieval at the daemon boundary.
// The core imposes no timeouts of its own.
type FetchConfig struct {
	// Timeout bounds a single artifact download, as a Go duration
	// string. Default: 60s.
	Timeout string `yaml:"timeout"`

	// MaxBytes caps the size of a fetched artifact. Default: 64 MiB.
	MaxBytes int64 `yaml:"max_bytes"`
}

// AuditConfig configures the decision audit log.
type AuditConfig struct {
	// Enabled toggles decision recording. Default: true.
	Enabled bool `yaml:"enabled"`

	// BufferSize is the recorder's queue length. Decisions observed
	// while the queue is full are dropped and counted, never delayed.
	// Zero takes the recorder's default.
	BufferSize int `yaml:"buffer_size"`

	// PoolSize is the SQLite connection pool size. Zero takes the
	// pool's default.
	PoolSize int `yaml:"pool_size"`
}

// SandboxConfig configures component execution.
type SandboxConfig struct {
	// DefaultMemoryLimit applies when a component's policy sets no
	// memory limit, in bytes. Zero leaves such components unbounded
	// by policy.
	DefaultMemoryLimit uint64 `yaml:"default_memory_limit"`

	// StorageRoot is the host directory components see as their
	// filesystem root, behind per-path storage checks. Empty means
	// components get no filesystem at all.
	StorageRoot string `yaml:"storage_root"`
}

// Default returns the default configuration: everything under
// ~/.local/share/enclave, JSON logging at info, a 60 second fetch
// timeout, auditing on.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return DefaultAt(filepath.Join(homeDir, ".local", "share", "enclave"))
}

// DefaultAt returns the default configuration with every path placed
// under root. The daemon's --data-dir flag relocates all state this
// way without a config file.
func DefaultAt(root string) *Config {
	return &Config{
		Paths: PathsConfig{
			Root:      root,
			Policies:  filepath.Join(root, "policies"),
			Secrets:   filepath.Join(root, "secrets"),
			Artifacts: filepath.Join(root, "artifacts"),
			AuditDB:   filepath.Join(root, "audit.db"),
			Socket:    filepath.Join(root, "host.sock"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Fetch: FetchConfig{
			Timeout:  "60s",
			MaxBytes: 64 << 20,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			PoolSize:   4,
		},
	}
}

// Load loads configuration from the path in the ENCLAVE_CONFIG
// environment variable. When the variable is unset, the defaults are
// returned; a single-host daemon must come up without ceremony.
// Individual environment variables never override file values.
func Load() (*Config, error) {
	configPath := os.Getenv("ENCLAVE_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. File values
// overlay the defaults; the only expansion performed is ${VAR} and
// ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. ${ENCLAVE_ROOT} refers to the configured root so dependent
// paths follow it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ENCLAVE_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["ENCLAVE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Policies = expandVars(c.Paths.Policies, vars)
	c.Paths.Secrets = expandVars(c.Paths.Secrets, vars)
	c.Paths.Artifacts = expandVars(c.Paths.Artifacts, vars)
	c.Paths.AuditDB = expandVars(c.Paths.AuditDB, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// FetchTimeout parses the configured fetch timeout.
func (c *Config) FetchTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing fetch.timeout: %w", err)
	}
	return timeout, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Policies == "" {
		errs = append(errs, fmt.Errorf("paths.policies is required"))
	}
	if c.Paths.Secrets == "" {
		errs = append(errs, fmt.Errorf("paths.secrets is required"))
	}
	if c.Paths.Artifacts == "" {
		errs = append(errs, fmt.Errorf("paths.artifacts is required"))
	}
	if c.Paths.AuditDB == "" {
		errs = append(errs, fmt.Errorf("paths.audit_db is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	formats := []string{"json", "text"}
	if !slices.Contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if timeout, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("fetch.timeout is not a duration: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_bytes must be positive"))
	}

	if c.Audit.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("audit.buffer_size must not be negative"))
	}
	if c.Audit.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("audit.pool_size must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the root data directory and the parents of the
// socket and audit database, owner-only. The policy, secret, and
// artifact stores create their own directories.
func (c *Config) EnsurePaths() error {
	directories := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Socket),
		filepath.Dir(c.Paths.AuditDB),
	}

	for _, directory := range directories {
		if directory == "" {
			continue
		}
		if err := os.MkdirAll(directory, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", directory, err)
		}
	}

	return nil
}
