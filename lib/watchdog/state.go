// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateFileName is the termination record inside the data directory.
const StateFileName = "watchdog.json"

// TerminationRecord is what a terminated process leaves behind for the
// next start.
type TerminationRecord struct {
	PID       int       `json:"pid"`
	Remotes   []string  `json:"remotes"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordFor converts a Termination into its persisted form.
func RecordFor(termination Termination) TerminationRecord {
	remotes := make([]string, len(termination.Violations))
	for position, connection := range termination.Violations {
		remotes[position] = connection.Remote()
	}
	return TerminationRecord{
		PID:       os.Getpid(),
		Remotes:   remotes,
		Timestamp: termination.DetectedAt,
	}
}

// WriteState atomically writes a termination record: temporary file,
// fsync, rename, fsync of the parent directory. Readers never see a
// partial record. The parent directory must exist.
func WriteState(path string, record TerminationRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling termination record: %w", err)
	}
	data = append(data, '\n')

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary termination record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary termination record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary termination record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary termination record: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming termination record into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// ReadState parses a termination record. A missing file returns an
// error wrapping os.ErrNotExist.
func ReadState(path string) (TerminationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TerminationRecord{}, err
	}
	var record TerminationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return TerminationRecord{}, fmt.Errorf("parsing termination record %s: %w", path, err)
	}
	return record, nil
}

// TakeState reads and removes a termination record. It returns false
// when there is none.
func TakeState(path string) (TerminationRecord, bool, error) {
	record, err := ReadState(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TerminationRecord{}, false, nil
		}
		return TerminationRecord{}, false, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return record, true, fmt.Errorf("removing termination record: %w", err)
	}
	return record, true, nil
}
