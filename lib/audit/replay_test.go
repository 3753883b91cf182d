// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReplayRebuildsCounters(t *testing.T) {
	ledger, path := openTestLedger(t)
	ledger.Record(EventToolCall, map[string]any{"persona": "sre", "tool": "kubectl get", "outcome": "ok"})
	ledger.Record(EventToolCall, map[string]any{"persona": "sre", "tool": "kubectl get", "outcome": "ok"})
	ledger.Record(EventAuthDenied, map[string]any{"persona": "secops"})
	ledger.Close()

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	file.WriteString("not json\n")
	file.Close()

	metrics, skipped, err := Replay(path)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if got := testutil.ToFloat64(metrics.toolCalls.WithLabelValues("sre", "kubectl get", "ok")); got != 2 {
		t.Errorf("tool calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.authDenied.WithLabelValues("secops")); got != 1 {
		t.Errorf("auth denied = %v, want 1", got)
	}
}

func TestReplayMissingFile(t *testing.T) {
	metrics, skipped, err := Replay(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil || skipped != 0 || metrics == nil {
		t.Fatalf("Replay = %v, %d, %v", metrics, skipped, err)
	}
}

func TestExportCompressions(t *testing.T) {
	ledger, path := openTestLedger(t)
	for range 20 {
		ledger.Record(EventGoal, map[string]any{"persona": "sre", "goal_length": 42})
	}
	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	decoders := map[Compression]func(io.Reader) (io.Reader, error){
		CompressionNone: func(r io.Reader) (io.Reader, error) { return r, nil },
		CompressionZstd: func(r io.Reader) (io.Reader, error) {
			decoder, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return decoder.IOReadCloser(), nil
		},
		CompressionLZ4: func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil },
	}
	for compression, decode := range decoders {
		t.Run(string(compression), func(t *testing.T) {
			var archive bytes.Buffer
			written, err := ledger.Export(&archive, compression)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if written != int64(len(original)) {
				t.Errorf("written = %d, want %d", written, len(original))
			}
			reader, err := decode(&archive)
			if err != nil {
				t.Fatal(err)
			}
			restored, err := io.ReadAll(reader)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(restored, original) {
				t.Error("decompressed archive differs from the audit file")
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	if c, err := ParseCompression(""); err != nil || c != CompressionZstd {
		t.Errorf("default = %q, %v", c, err)
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("gzip accepted")
	}
}

func TestWipe(t *testing.T) {
	directory := filepath.Join(t.TempDir(), ".physiclaw")
	if err := os.MkdirAll(filepath.Join(directory, "episodic"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(PathFor(directory), []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Wipe(directory, false); err != ErrWipeNotConfirmed {
		t.Fatalf("unconfirmed Wipe error = %v", err)
	}
	if _, err := os.Stat(directory); err != nil {
		t.Fatal("unconfirmed Wipe removed data")
	}

	removed, err := Wipe(directory, true)
	if err != nil || !removed {
		t.Fatalf("Wipe = %v, %v", removed, err)
	}
	if _, err := os.Stat(directory); !os.IsNotExist(err) {
		t.Errorf("directory still exists: %v", err)
	}

	removed, err = Wipe(directory, true)
	if err != nil || removed {
		t.Errorf("second Wipe = %v, %v", removed, err)
	}
}

func TestWipeRefusesDangerousPaths(t *testing.T) {
	for _, path := range []string{"", "/"} {
		if _, err := Wipe(path, true); err == nil {
			t.Errorf("Wipe(%q) succeeded", path)
		}
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	if _, err := Wipe(home, true); err == nil {
		t.Error("Wipe(home) succeeded")
	}
	if _, err := os.Stat(home); err != nil {
		t.Errorf("home directory removed: %v", err)
	}
}
