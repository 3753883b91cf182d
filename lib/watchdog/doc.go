// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog is the egress watchdog: a background poller that
// inspects this process's own TCP connections and asks for the whole
// process to be terminated when any remote endpoint lies outside the
// [SafeAddressSpace].
//
// The watchdog detects egress after the fact. It does not prevent a
// connection from being opened, and data sent before the next poll has
// already left the machine. A tool that connects and disconnects
// between two polls is never seen. Prevention needs a firewall or a
// network namespace (the hardened sandbox provides the latter).
//
// The lifecycle is Stopped, then Watching, then Terminating. On the
// first poll that finds a violation the watchdog logs each offending
// connection at CRITICAL, records one egress_block audit event per
// connection, sends a single [Termination] on its channel, and stops.
// It never exits the process itself: the receiver of the channel owns
// that decision.
//
// Connection enumeration reads /proc/net/tcp and /proc/net/tcp6
// through github.com/prometheus/procfs and keeps sockets whose inode
// is held open by this process. When /proc is unavailable,
// [NewProcEnumerator] returns [ErrUnavailable] and the caller logs the
// watchdog as disabled.
//
// [WriteState] records the termination reason atomically in the data
// directory so the next start can report why the previous run ended.
package watchdog
