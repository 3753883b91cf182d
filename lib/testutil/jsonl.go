// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bufio"
	"encoding/json"
	"os"
)

// ReadJSONLines decodes every line of a JSON-lines file into a map. A
// missing file yields no records.
func ReadJSONLines(t TB, path string) []map[string]any {
	t.Helper()
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer file.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("line %d of %s is not JSON: %v", len(records)+1, path, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return records
}

// FilterEvents returns the records whose "event" field equals kind.
func FilterEvents(records []map[string]any, kind string) []map[string]any {
	var matched []map[string]any
	for _, record := range records {
		if record["event"] == kind {
			matched = append(matched, record)
		}
	}
	return matched
}
