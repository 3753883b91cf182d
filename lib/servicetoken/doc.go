// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package servicetoken implements the signed bearer tokens the
// authorization gate accepts in place of a static key.
//
// # Wire format
//
// A token is a CBOR-encoded [Token] followed by a 32-byte keyed BLAKE3
// MAC over the payload bytes, the whole encoded as unpadded base64url
// so it fits in an HTTP header:
//
//	base64url( [CBOR payload bytes] [32-byte BLAKE3 MAC] )
//
// The split point is always len(decoded) - 32. There is no header and
// no algorithm field: the MAC is fixed.
//
// # Keys
//
// Operators configure a signing secret of any length. [DeriveKey]
// turns it into the 32-byte MAC key with BLAKE3's key derivation mode
// under a fixed context string, so the same secret used elsewhere
// cannot produce a valid token MAC. The derived key lives in a
// [secret.Buffer].
//
// A token admits a goal only when its role, if set, matches the
// claimed persona and its scopes, if set, include [ScopeGoalSubmit].
// Those checks belong to the gate; this package only proves the token
// was minted with the key and has not expired.
package servicetoken
