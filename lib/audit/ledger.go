// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/physiclaw/physiclaw/lib/clock"
)

// Config configures a Ledger.
type Config struct {
	// Path is the audit file. Required.
	Path string

	// Clock stamps records. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives write failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Ledger appends audit records and maintains the counters.
type Ledger struct {
	path   string
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	head    string
	metrics *Metrics
	closed  bool
}

// PathFor returns the audit file path inside dataDir.
func PathFor(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open prepares a ledger at config.Path. The file and its directory
// are created on first use. Failing to open the file is logged, not
// returned: the ledger keeps counting and retries the file on every
// Record.
func Open(config Config) (*Ledger, error) {
	if config.Path == "" {
		return nil, errors.New("audit: path is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ledger := &Ledger{
		path:    config.Path,
		clock:   config.Clock,
		logger:  config.Logger,
		metrics: NewMetrics(),
	}
	ledger.mu.Lock()
	ledger.ensureFileLocked()
	ledger.mu.Unlock()
	return ledger, nil
}

// Path returns the audit file path.
func (l *Ledger) Path() string { return l.path }

// Record appends one event and updates the counters. It never fails
// from the caller's point of view. Nil payload values are omitted, and
// payload keys named ts, event, or chain are ignored.
func (l *Ledger) Record(kind string, payload map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.metrics.Observe(kind, payload)

	if l.closed {
		l.logger.Warn("audit record after close dropped", "event", kind)
		return
	}
	body, err := encodeBody(l.clock.Now(), kind, payload)
	if err != nil {
		l.logger.Warn("audit record could not be encoded", "event", kind, "error", err)
		return
	}
	if !l.ensureFileLocked() {
		return
	}

	chain := nextChain(l.head, body)
	line := appendChain(body, chain)
	if _, err := l.file.Write(line); err != nil {
		l.logger.Warn("audit write failed", "path", l.path, "event", kind, "error", err)
		return
	}
	l.head = chain
}

// RecordLatency observes a retrieval latency. It is a metric only and
// writes no audit line. An observation without a layer, or with a
// negative or non-finite duration, is dropped.
func (l *Ledger) RecordLatency(layer string, seconds float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.metrics.ObserveLatency(layer, seconds) {
		l.logger.Debug("retrieval latency dropped", "layer", layer, "seconds", seconds)
	}
}

// ExportMetrics renders the counters in Prometheus text exposition
// format. Rendering holds the ledger lock, so the output reflects a
// point between two records.
func (l *Ledger) ExportMetrics() string {
	var buffer bytes.Buffer
	if err := l.WriteMetrics(&buffer); err != nil {
		l.logger.Warn("metrics exposition failed", "error", err)
	}
	return buffer.String()
}

// WriteMetrics is ExportMetrics into a writer.
func (l *Ledger) WriteMetrics(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics.WriteText(w)
}

// Metrics exposes the underlying counters, mainly for tests.
func (l *Ledger) Metrics() *Metrics { return l.metrics }

// Close flushes and closes the file. Later Records still count but
// are not written.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ensureFileLocked opens the file if needed. Must be called with l.mu
// held.
func (l *Ledger) ensureFileLocked() bool {
	if l.file != nil {
		return true
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		l.logger.Warn("audit directory unavailable", "path", l.path, "error", err)
		return false
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		l.logger.Warn("audit file unavailable", "path", l.path, "error", err)
		return false
	}
	head, err := recoverHead(file)
	if err != nil {
		l.logger.Warn("audit chain restarted", "path", l.path, "reason", err)
	}
	l.file = file
	l.head = head
	return true
}

// encodeBody renders {"ts":...,"event":...,<sorted payload>}.
func encodeBody(now time.Time, kind string, payload map[string]any) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteString(`{"ts":`)
	if err := writeJSON(&buffer, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, err
	}
	buffer.WriteString(`,"event":`)
	if err := writeJSON(&buffer, kind); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(payload))
	for key, value := range payload {
		if value == nil || key == keyTimestamp || key == keyEvent || key == keyChain {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		buffer.WriteByte(',')
		if err := writeJSON(&buffer, key); err != nil {
			return nil, err
		}
		buffer.WriteByte(':')
		if err := writeJSON(&buffer, payload[key]); err != nil {
			// Values that cannot be JSON (channels, funcs) are
			// recorded by their printed form rather than dropped.
			if err := writeJSON(&buffer, fmt.Sprint(payload[key])); err != nil {
				return nil, err
			}
		}
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func writeJSON(buffer *bytes.Buffer, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buffer.Write(data)
	return nil
}
