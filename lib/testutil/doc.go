// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for physiclaw packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never block forever on a watchdog or supervisor
// channel. [ReadJSONLines] decodes an audit file so tests can assert on
// records without re-implementing line splitting.
//
// Helpers call t.Fatalf on failure; setup failures are not recoverable.
package testutil
