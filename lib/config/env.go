// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables recognized by Load.
const (
	EnvConfig            = "PHYSICLAW_CONFIG"
	EnvDataDir           = "PHYSICLAW_DATA_DIR"
	EnvMemoryDir         = "PHYSICLAW_MEMORY_DIR"
	EnvWorkDir           = "PHYSICLAW_WORK_DIR"
	EnvSandbox           = "PHYSICLAW_SANDBOX"
	EnvSandboxNet        = "PHYSICLAW_SANDBOX_NET"
	EnvStrictAuth        = "PHYSICLAW_STRICT_AUTH"
	EnvAPIKeys           = "PHYSICLAW_API_KEYS"
	EnvSealedCredentials = "PHYSICLAW_CREDENTIALS_SEALED"
	EnvAgeIdentity       = "PHYSICLAW_AGE_IDENTITY"
	EnvTokenSecret       = "PHYSICLAW_TOKEN_SECRET"
	EnvTokenSecretFile   = "PHYSICLAW_TOKEN_SECRET_FILE"
	EnvWatchdog          = "PHYSICLAW_WATCHDOG"
	EnvWatchdogInterval  = "PHYSICLAW_WATCHDOG_INTERVAL"
	EnvToolTimeout       = "PHYSICLAW_TOOL_TIMEOUT"
	EnvLogLevel          = "PHYSICLAW_LOG_LEVEL"
	EnvLogFormat         = "PHYSICLAW_LOG_FORMAT"
)

func (c *Config) applyEnvironment(values map[string]string) error {
	// PHYSICLAW_MEMORY_DIR predates PHYSICLAW_DATA_DIR and is honored
	// when the newer name is absent.
	if value, ok := values[EnvMemoryDir]; ok && value != "" {
		c.DataDir = value
	}
	if value, ok := values[EnvDataDir]; ok && value != "" {
		c.DataDir = value
	}
	if value, ok := values[EnvWorkDir]; ok {
		c.WorkDir = value
	}

	flags := []struct {
		name   string
		target *bool
	}{
		{EnvSandbox, &c.Sandbox.Enabled},
		{EnvSandboxNet, &c.Sandbox.ShareNetwork},
		{EnvStrictAuth, &c.Auth.Strict},
		{EnvWatchdog, &c.Watchdog.Enabled},
	}
	for _, flag := range flags {
		value, ok := values[flag.name]
		if !ok {
			continue
		}
		parsed, err := parseSwitch(value)
		if err != nil {
			return fmt.Errorf("%s: %w", flag.name, err)
		}
		*flag.target = parsed
	}

	durations := []struct {
		name   string
		target *Duration
	}{
		{EnvWatchdogInterval, &c.Watchdog.Interval},
		{EnvToolTimeout, &c.Execution.DefaultTimeout},
	}
	for _, entry := range durations {
		value, ok := values[entry.name]
		if !ok || value == "" {
			continue
		}
		if err := entry.target.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("%s: %w", entry.name, err)
		}
	}

	texts := []struct {
		name   string
		target *string
	}{
		{EnvAPIKeys, &c.Auth.Credentials},
		{EnvSealedCredentials, &c.Auth.SealedCredentials},
		{EnvAgeIdentity, &c.Auth.AgeIdentityFile},
		{EnvTokenSecret, &c.Auth.TokenSecret},
		{EnvTokenSecretFile, &c.Auth.TokenSecretFile},
		{EnvLogLevel, &c.Log.Level},
		{EnvLogFormat, &c.Log.Format},
	}
	for _, entry := range texts {
		if value, ok := values[entry.name]; ok {
			*entry.target = value
		}
	}
	return nil
}

// parseSwitch accepts the spellings operators use for on/off flags.
// "bwrap" turns hardened mode on.
func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "bwrap":
		return true, nil
	case "", "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

// seconds parses a bare number as seconds, for values written the way
// older deployments wrote them ("5" rather than "5s").
func seconds(value string) (time.Duration, bool) {
	whole, err := strconv.ParseInt(value, 10, 64)
	if err != nil || whole < 0 {
		return 0, false
	}
	return time.Duration(whole) * time.Second, true
}
