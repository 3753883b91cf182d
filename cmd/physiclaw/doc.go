// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Physiclaw is the command-line front end of the local enforcement
// layer. It runs whitelisted tools for a persona, admits goals through
// the authorization gate, and inspects or exports the audit ledger.
//
// The exec and goal subcommands run under the egress supervisor, so a
// connection outside the safe address space at any point terminates
// the process with status 1.
package main
