// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Exit statuses used by physiclaw binaries.
const (
	// ExitOK is a clean run.
	ExitOK = 0

	// ExitFailure covers configuration errors, denied requests, and
	// egress violations. The watchdog kill-switch always uses this
	// status so supervisors can treat it as a hard stop.
	ExitFailure = 1

	// ExitUsage reports a malformed command line.
	ExitUsage = 2
)

// ExitFunc terminates the process. Production code passes os.Exit.
type ExitFunc func(code int)

// Fatal writes "error: err" to stderr and exits with ExitFailure. Use
// it in main() for errors from run() where the structured logger may
// not be initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitFailure)
}

// Usage writes a usage error to stderr and exits with ExitUsage.
func Usage(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "usage error: "+format+"\n", args...)
	os.Exit(ExitUsage)
}
