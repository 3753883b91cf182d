// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
	if config.Watchdog.Interval.Std() != 5*time.Second {
		t.Errorf("watchdog interval = %v, want 5s", config.Watchdog.Interval)
	}
	if config.Execution.DefaultTimeout.Std() != 300*time.Second {
		t.Errorf("default timeout = %v, want 300s", config.Execution.DefaultTimeout)
	}
	if config.Sandbox.Enabled {
		t.Error("sandbox should be off by default")
	}
	if config.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q", config.DataDir)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physiclaw.yaml")
	content := `
data_dir: /var/lib/physiclaw
sandbox:
  enabled: true
  bind_roots: [/usr, /etc]
auth:
  strict: true
  credentials: "sre:k1,*:k2"
watchdog:
  interval: 2s
execution:
  default_timeout: 45
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.DataDir != "/var/lib/physiclaw" || !config.Sandbox.Enabled || !config.Auth.Strict {
		t.Errorf("unexpected config: %+v", config)
	}
	if len(config.Sandbox.BindRoots) != 2 {
		t.Errorf("BindRoots = %v", config.Sandbox.BindRoots)
	}
	if config.Watchdog.Interval.Std() != 2*time.Second {
		t.Errorf("interval = %v", config.Watchdog.Interval)
	}
	if config.Execution.DefaultTimeout.Std() != 45*time.Second {
		t.Errorf("timeout = %v", config.Execution.DefaultTimeout)
	}
	if config.Auth.Credentials != "sre:k1,*:k2" {
		t.Errorf("credentials = %q", config.Auth.Credentials)
	}
}

func TestLoadJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physiclaw.jsonc")
	content := `{
  // comments are allowed
  "data_dir": "/srv/physiclaw",
  "watchdog": {"enabled": false, "interval": "10s",},
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	config, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.DataDir != "/srv/physiclaw" || config.Watchdog.Enabled {
		t.Errorf("unexpected config: %+v", config)
	}
	if config.Watchdog.Interval.Std() != 10*time.Second {
		t.Errorf("interval = %v", config.Watchdog.Interval)
	}
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physiclaw.json")
	if err := os.WriteFile(path, []byte(`{"data_dirr": "/x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Fatal("Load accepted an unknown field")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	environment := []string{
		"PHYSICLAW_SANDBOX=bwrap",
		"PHYSICLAW_SANDBOX_NET=1",
		"PHYSICLAW_STRICT_AUTH=yes",
		"PHYSICLAW_API_KEYS=secops:abc",
		"PHYSICLAW_WATCHDOG_INTERVAL=750ms",
		"PHYSICLAW_TOOL_TIMEOUT=12",
		"PHYSICLAW_MEMORY_DIR=/old",
		"PHYSICLAW_DATA_DIR=/new",
		"PHYSICLAW_TOKEN_SECRET=s3cret",
	}
	config, err := Load("", environment)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !config.Sandbox.Enabled || !config.Sandbox.ShareNetwork || !config.Auth.Strict {
		t.Errorf("switches not applied: %+v", config)
	}
	if config.Auth.Credentials != "secops:abc" || config.Auth.TokenSecret != "s3cret" {
		t.Errorf("auth = %+v", config.Auth)
	}
	if config.Watchdog.Interval.Std() != 750*time.Millisecond {
		t.Errorf("interval = %v", config.Watchdog.Interval)
	}
	if config.Execution.DefaultTimeout.Std() != 12*time.Second {
		t.Errorf("timeout = %v", config.Execution.DefaultTimeout)
	}
	if config.DataDir != "/new" {
		t.Errorf("DataDir = %q, want /new", config.DataDir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physiclaw.yml")
	if err := os.WriteFile(path, []byte("auth:\n  strict: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	config, err := Load("", []string{"PHYSICLAW_CONFIG=" + path, "PHYSICLAW_STRICT_AUTH=0"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Auth.Strict {
		t.Error("environment did not override file value")
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name        string
		environment []string
	}{
		{"bad switch", []string{"PHYSICLAW_SANDBOX=maybe"}},
		{"bad duration", []string{"PHYSICLAW_WATCHDOG_INTERVAL=soon"}},
		{"zero interval", []string{"PHYSICLAW_WATCHDOG_INTERVAL=0s"}},
		{"bad log level", []string{"PHYSICLAW_LOG_LEVEL=loud"}},
		{"sealed without identity", []string{"PHYSICLAW_CREDENTIALS_SEALED=/etc/creds.age"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Load("", test.environment); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestRelativeBindRootRejected(t *testing.T) {
	config := Default()
	config.Sandbox.BindRoots = []string{"usr"}
	if err := config.Validate(); err == nil {
		t.Fatal("relative bind root accepted")
	}
}

func TestUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physiclaw.toml")
	if err := os.WriteFile(path, []byte("x=1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, nil); err == nil || !strings.Contains(err.Error(), "unsupported extension") {
		t.Fatalf("Load error = %v", err)
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", data)
	}
	for _, key := range []string{"data_dir", "sandbox", "auth", "watchdog", "execution", "log"} {
		if _, ok := properties[key]; !ok {
			t.Errorf("schema is missing %q", key)
		}
	}
	if strings.Contains(string(data), "TokenSecret\"") {
		t.Error("environment-only field leaked into schema")
	}
}
