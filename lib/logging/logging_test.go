// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestCriticalLevelRendersName(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(FormatJSON, slog.LevelInfo, &buffer)
	logger.Log(context.Background(), LevelCritical, "egress violation", "remote", "8.8.8.8")

	var line map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buffer.String())
	}
	if line["level"] != "CRITICAL" {
		t.Errorf("level = %v, want CRITICAL", line["level"])
	}
	if line["remote"] != "8.8.8.8" {
		t.Errorf("remote = %v, want 8.8.8.8", line["remote"])
	}
}

func TestTextFormatAndFiltering(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(FormatText, slog.LevelWarn, &buffer)
	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	output := buffer.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("info line emitted at warn level: %q", output)
	}
	if !strings.Contains(output, "level=WARN") || !strings.Contains(output, "key=value") {
		t.Errorf("unexpected text output: %q", output)
	}
}

func TestAutoFormatFallsBackToJSON(t *testing.T) {
	var buffer bytes.Buffer
	New(FormatAuto, slog.LevelInfo, &buffer).Info("hello")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("non-terminal writer should get JSON, got %q", buffer.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"critical", LevelCritical, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, test := range tests {
		got, err := ParseLevel(test.name)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", test.name, err, test.wantErr)
			continue
		}
		if got != test.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}
