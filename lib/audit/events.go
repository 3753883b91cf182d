// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

// Event kinds with counter side effects. Other kinds are recorded to
// the file only.
const (
	EventGoal              = "goal"
	EventToolCall          = "tool_call"
	EventSecurityViolation = "security_violation"
	EventEgressBlock       = "egress_block"
	EventAuthDenied        = "auth_denied"
)

// Payload keys read by the counters.
const (
	KeyPersona = "persona"
	KeyTool    = "tool"
	KeyOutcome = "outcome"
)

// Keys the ledger owns on every line.
const (
	keyTimestamp = "ts"
	keyEvent     = "event"
	keyChain     = "chain"
)

// FileName is the ledger file inside the data directory.
const FileName = "audit.jsonl"

// Recorder is the write side of the ledger, accepted by components
// that emit audit events.
type Recorder interface {
	Record(kind string, payload map[string]any)
}

// Discard is a Recorder that drops everything.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(string, map[string]any) {}
