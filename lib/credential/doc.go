// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential holds the static credential map: which opaque
// access keys may submit goals as which persona.
//
// The map is written as comma-separated persona:key pairs, for example
//
//	sre:KEY1,secops:KEY2,*:KEYALL
//
// where the persona "*" grants a key to every persona. It is parsed
// once at startup, from configuration text or from an age-encrypted
// file (see [LoadSealed]), and never changes afterwards. Key bytes are
// copied into a single [secret.Buffer]; the Go heap holds only offsets.
//
// Errors never include key material.
package credential
