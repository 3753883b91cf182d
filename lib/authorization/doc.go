// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorization is the gate a transport consults before it
// accepts a goal for a claimed persona.
//
// [Gate.Check] applies these rules in order:
//
//  1. A bearer token that verifies against the signing key admits the
//     request when its role, if set, is the claimed persona and its
//     scopes, if set, include goal:submit. Without a signing key,
//     tokens are not verified at all.
//  2. Otherwise, when a credential map is configured, the presented key
//     must be granted to the claimed persona or to "*".
//  3. With no credential map, the request is admitted unless strict
//     mode is on.
//  4. In strict mode, anything not admitted by rule 1 or 2 is denied.
//
// A claimed persona outside the closed set is always denied. Denials
// say whether any credential was offered ([ReasonNoCredential] versus
// [ReasonInvalidCredential]) so the transport can answer 401 or 403.
// Every denial is recorded as an auth_denied audit event.
package authorization
