// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs tool processes, either directly or inside a
// bubblewrap (bwrap) sandbox, and classifies how they ended.
//
// Both runners implement [Runner] and share one process core: the
// child gets its own process group, a timeout kills the whole group
// with SIGKILL, and output is captured with a size cap. [Result]
// reports ok, a non-zero exit code, or a typed [Failure] (not found,
// timeout, sandbox unavailable, spawn error, or a whitelist denial
// produced upstream).
//
// [Bubblewrap] builds the isolation from the policy:
//
//   - --die-with-parent and --new-session, so the sandbox dies with
//     physiclaw and cannot inject input into the controlling terminal
//   - --unshare-all, plus --share-net only when network sharing is on
//   - read-only binds of the system roots that exist on this host
//   - fresh /proc, /dev, /tmp, and /run
//   - --clearenv followed by the sanitized environment
//
// The bwrap process itself runs with a minimal environment: its own
// /proc/<pid>/environ is readable from inside the sandbox.
//
// When hardened mode is selected and bwrap is missing or cannot create
// namespaces, every call fails with [FailureSandboxUnavailable]. There
// is no silent fallback to direct execution.
//
// The sandbox contains what a tool can touch. It does not stop a tool
// from opening outbound connections when the network is shared; that
// is detected after the fact by the egress watchdog.
package sandbox
