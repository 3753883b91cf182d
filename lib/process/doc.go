// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers for physiclaw binaries:
// reporting an error before the structured logger exists, and mapping
// termination causes to exit statuses.
//
// The only code allowed to end the process outside main is the
// perimeter supervisor, and it does so through an [ExitFunc] so that
// tests can observe the decision without dying.
package process
