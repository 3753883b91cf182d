// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrWipeNotConfirmed is returned when Wipe is called without
// confirmation.
var ErrWipeNotConfirmed = errors.New("wipe requires explicit confirmation")

// Wipe deletes dataDir and everything in it, including the audit log.
// It refuses to run without confirm and refuses paths that resolve to
// the filesystem root or the user's home directory. A missing
// directory is not an error; the return value reports whether anything
// was removed.
func Wipe(dataDir string, confirm bool) (bool, error) {
	if !confirm {
		return false, ErrWipeNotConfirmed
	}
	if dataDir == "" {
		return false, errors.New("wipe: data directory is empty")
	}
	absolute, err := filepath.Abs(dataDir)
	if err != nil {
		return false, fmt.Errorf("wipe: resolving %s: %w", dataDir, err)
	}
	if absolute == string(filepath.Separator) {
		return false, fmt.Errorf("wipe: refusing to remove %s", absolute)
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == absolute {
		return false, fmt.Errorf("wipe: refusing to remove home directory %s", absolute)
	}

	if _, err := os.Lstat(absolute); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(absolute); err != nil {
		return false, fmt.Errorf("wipe: %w", err)
	}
	return true, nil
}
