// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads physiclaw's startup configuration.
//
// Resolution order is fixed: [Default], then the optional config file
// named by --config or PHYSICLAW_CONFIG, then PHYSICLAW_* environment
// overrides, then validation. Nothing re-reads configuration after
// startup; the resulting Config is handed to the perimeter and treated
// as read-only.
//
// Files ending in .yaml or .yml are YAML. Files ending in .json or
// .jsonc are JSON with comments and trailing commas allowed.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultDataDir is the base directory for the audit log and any
// sibling stores when nothing else is configured.
const DefaultDataDir = ".physiclaw"

// Config is the complete physiclaw configuration.
type Config struct {
	// DataDir holds audit.jsonl and the other on-disk stores.
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required" jsonschema:"description=Base directory for the audit log and local stores"`

	// WorkDir is the working directory given to tool processes. Empty
	// means the current directory of the physiclaw process.
	WorkDir string `yaml:"work_dir" json:"work_dir,omitempty"`

	Sandbox   SandboxConfig   `yaml:"sandbox" json:"sandbox"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Watchdog  WatchdogConfig  `yaml:"watchdog" json:"watchdog"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// SandboxConfig selects hardened execution.
type SandboxConfig struct {
	// Enabled routes every tool call through bubblewrap. When bwrap is
	// missing, calls fail rather than running unsandboxed.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ShareNetwork keeps the host network namespace inside the sandbox.
	ShareNetwork bool `yaml:"share_network" json:"share_network"`

	// BindRoots are host directories mounted read-only. Missing roots
	// are skipped at run time.
	BindRoots []string `yaml:"bind_roots" json:"bind_roots" validate:"dive,startswith=/"`

	// BwrapPath overrides bwrap discovery.
	BwrapPath string `yaml:"bwrap_path" json:"bwrap_path,omitempty" validate:"omitempty,startswith=/"`
}

// AuthConfig configures the authorization gate.
type AuthConfig struct {
	// Strict denies every request that presents no valid credential
	// when no credential map is configured.
	Strict bool `yaml:"strict" json:"strict"`

	// Credentials is the static map in "persona:key,persona:key" form.
	// The persona "*" grants a key to every persona.
	Credentials string `yaml:"credentials" json:"credentials,omitempty"`

	// SealedCredentials is an age-encrypted file holding the same map.
	SealedCredentials string `yaml:"sealed_credentials" json:"sealed_credentials,omitempty" validate:"omitempty,excluded_with=Credentials"`

	// AgeIdentityFile decrypts SealedCredentials.
	AgeIdentityFile string `yaml:"age_identity_file" json:"age_identity_file,omitempty" validate:"required_with=SealedCredentials"`

	// TokenSecretFile holds the bearer token signing secret. Without a
	// secret, token verification is disabled.
	TokenSecretFile string `yaml:"token_secret_file" json:"token_secret_file,omitempty"`

	// TokenSecret is only settable from the environment.
	TokenSecret string `yaml:"-" json:"-"`

	// TokenTTL is the lifetime of tokens minted by `physiclaw token mint`.
	TokenTTL Duration `yaml:"token_ttl" json:"token_ttl" validate:"gt=0"`
}

// WatchdogConfig configures the egress watchdog.
type WatchdogConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Interval Duration `yaml:"interval" json:"interval" validate:"gt=0"`
}

// ExecutionConfig configures tool execution.
type ExecutionConfig struct {
	DefaultTimeout Duration `yaml:"default_timeout" json:"default_timeout" validate:"gt=0"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=auto text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Sandbox: SandboxConfig{
			BindRoots: []string{"/usr", "/bin", "/lib", "/lib64", "/etc"},
		},
		Auth: AuthConfig{
			TokenTTL: Duration(time.Hour),
		},
		Watchdog: WatchdogConfig{
			Enabled:  true,
			Interval: Duration(5 * time.Second),
		},
		Execution: ExecutionConfig{
			DefaultTimeout: Duration(300 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load resolves the configuration. path may be empty, in which case
// PHYSICLAW_CONFIG from environment is consulted. environment is in
// os.Environ form and is never read from the live process here.
func Load(path string, environment []string) (*Config, error) {
	values := envMap(environment)
	if path == "" {
		path = values["PHYSICLAW_CONFIG"]
	}

	config := Default()
	if path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := config.applyEnvironment(values); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case ".json", ".jsonc":
		decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config file %s: unsupported extension (want .yaml, .yml, .json, or .jsonc)", path)
	}
	return nil
}

func envMap(environment []string) map[string]string {
	values := make(map[string]string, len(environment))
	for _, entry := range environment {
		if key, value, found := strings.Cut(entry, "="); found {
			values[key] = value
		}
	}
	return values
}
