// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Replay rebuilds counters from an audit file. Lines that are not JSON
// objects are counted in skipped and otherwise ignored. A missing file
// yields zero counters.
func Replay(path string) (metrics *Metrics, skipped int, err error) {
	metrics = NewMetrics()
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return metrics, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			skipped++
			continue
		}
		kind, _ := record[keyEvent].(string)
		if kind == "" {
			skipped++
			continue
		}
		metrics.Observe(kind, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading %s: %w", path, err)
	}
	return metrics, skipped, nil
}
