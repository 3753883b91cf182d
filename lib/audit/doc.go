// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit is the append-only security ledger and the in-process
// counters derived from it.
//
// Every security-relevant event becomes one JSON line in
// <data dir>/audit.jsonl:
//
//	{"ts":"2026-03-01T12:00:00.000000000Z","event":"tool_call","outcome":"ok","persona":"sre","tool":"kubectl get","chain":"9c1e..."}
//
// "ts" and "event" are written by the ledger and cannot be overridden
// by payload keys. "chain" is the hex BLAKE3 hash of the previous
// line's chain value followed by this line's body (the line without
// its chain field), so deleting, reordering, or editing a line breaks
// every later hash. [Verify] walks a file and reports the first break.
//
// A single mutex orders file appends, the chain head, and counter
// updates, so the counters never disagree with the order of lines on
// disk. Writing the file is best effort: a failed append is logged at
// WARN, the chain head does not advance, and the caller never sees an
// error. Counters are process-local and start at zero; [Replay]
// rebuilds them from a file for offline inspection.
package audit
