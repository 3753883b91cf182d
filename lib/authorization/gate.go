// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"log/slog"
	"strings"

	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/clock"
	"github.com/physiclaw/physiclaw/lib/credential"
	"github.com/physiclaw/physiclaw/lib/persona"
	"github.com/physiclaw/physiclaw/lib/servicetoken"
)

// Decision is the outcome of a gate check.
type Decision int

const (
	// Deny means the request must not be accepted.
	Deny Decision = iota

	// Allow means the request may proceed.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a check was denied.
type DenyReason int

const (
	// ReasonNone is the reason of an allowed result.
	ReasonNone DenyReason = iota

	// ReasonNoCredential means neither a key nor a token was offered.
	ReasonNoCredential

	// ReasonInvalidCredential means a credential was offered and did
	// not admit the request.
	ReasonInvalidCredential

	// ReasonUnknownPersona means the claimed persona is not in the
	// closed set.
	ReasonUnknownPersona
)

// String returns the reason as recorded in audit events.
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoCredential:
		return "no_credential"
	case ReasonInvalidCredential:
		return "invalid_credential"
	case ReasonUnknownPersona:
		return "unknown_persona"
	default:
		return "unknown"
	}
}

// Rule names which rule admitted a request.
type Rule string

const (
	RuleToken      Rule = "token"
	RuleCredential Rule = "credential"
	RuleOpen       Rule = "open"
)

// Credentials are what the caller presented.
type Credentials struct {
	// Key is the opaque static key, e.g. from an X-API-Key header.
	Key string

	// Token is the bearer token, with or without a "Bearer " prefix.
	Token string
}

func (c Credentials) bearer() string {
	token := strings.TrimSpace(c.Token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func (c Credentials) offered() bool {
	return strings.TrimSpace(c.Key) != "" || c.bearer() != ""
}

// Result is the outcome of a check.
type Result struct {
	Decision Decision
	Reason   DenyReason

	// Rule is set when the request was allowed.
	Rule Rule

	// Persona is the normalized claimed persona, when valid.
	Persona persona.Persona

	// Subject and TokenID are set when a token admitted the request.
	Subject string
	TokenID string
}

// Allowed reports whether the decision is Allow.
func (r Result) Allowed() bool { return r.Decision == Allow }

// Config holds the gate's read-only inputs.
type Config struct {
	// Credentials is the static map. Nil or empty means none is
	// configured.
	Credentials *credential.Map

	// TokenKey verifies bearer tokens. Nil disables token verification.
	TokenKey *servicetoken.Key

	// Strict denies requests no credential admits when no map is
	// configured.
	Strict bool

	Clock    clock.Clock
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Gate decides whether a request may submit a goal.
type Gate struct {
	credentials *credential.Map
	tokenKey    *servicetoken.Key
	strict      bool
	clock       clock.Clock
	recorder    audit.Recorder
	logger      *slog.Logger
}

// NewGate creates a gate. The gate borrows the credential map and the
// token key; the caller closes them.
func NewGate(config Config) *Gate {
	gate := &Gate{
		credentials: config.Credentials,
		tokenKey:    config.TokenKey,
		strict:      config.Strict,
		clock:       config.Clock,
		recorder:    config.Recorder,
		logger:      config.Logger,
	}
	if gate.clock == nil {
		gate.clock = clock.Real()
	}
	if gate.recorder == nil {
		gate.recorder = audit.Discard
	}
	if gate.logger == nil {
		gate.logger = slog.Default()
	}
	return gate
}

// Mode summarizes the gate configuration for logs and `config show`.
func (g *Gate) Mode() map[string]any {
	return map[string]any{
		"strict":         g.strict,
		"credential_map": g.credentials.Len(),
		"tokens":         g.tokenKey != nil,
	}
}

// IsAuthorized is Check reduced to a boolean.
func (g *Gate) IsAuthorized(claimedPersona string, credentials Credentials) bool {
	return g.Check(claimedPersona, credentials).Allowed()
}

// Check applies the gate rules to one request.
func (g *Gate) Check(claimedPersona string, credentials Credentials) Result {
	p, err := persona.Parse(claimedPersona)
	if err != nil {
		return g.deny(claimedPersona, ReasonUnknownPersona, credentials.offered())
	}

	if result, ok := g.checkToken(p, credentials.bearer()); ok {
		return result
	}

	key := strings.TrimSpace(credentials.Key)
	if g.credentials.Configured() {
		if key != "" && g.credentials.Match(string(p), []byte(key)) {
			return Result{Decision: Allow, Rule: RuleCredential, Persona: p}
		}
		return g.deny(string(p), g.reasonFor(credentials), credentials.offered())
	}

	if !g.strict {
		return Result{Decision: Allow, Rule: RuleOpen, Persona: p}
	}
	return g.deny(string(p), g.reasonFor(credentials), credentials.offered())
}

// checkToken applies rule 1. It reports false when the token does not
// admit the request, so the remaining rules apply.
func (g *Gate) checkToken(p persona.Persona, raw string) (Result, bool) {
	if raw == "" || g.tokenKey == nil {
		return Result{}, false
	}
	token, err := servicetoken.VerifyAt(g.tokenKey, raw, g.clock.Now())
	if err != nil {
		g.logger.Debug("bearer token rejected", "persona", p, "error", err)
		return Result{}, false
	}
	if token.Role != "" && persona.Normalize(token.Role) != string(p) {
		g.logger.Debug("bearer token role mismatch", "persona", p, "role", token.Role, "token_id", token.ID)
		return Result{}, false
	}
	if !token.HasScope(servicetoken.ScopeGoalSubmit) {
		g.logger.Debug("bearer token lacks scope", "persona", p, "scope", servicetoken.ScopeGoalSubmit, "token_id", token.ID)
		return Result{}, false
	}
	return Result{
		Decision: Allow,
		Rule:     RuleToken,
		Persona:  p,
		Subject:  token.Subject,
		TokenID:  token.ID,
	}, true
}

func (g *Gate) reasonFor(credentials Credentials) DenyReason {
	if credentials.offered() {
		return ReasonInvalidCredential
	}
	return ReasonNoCredential
}

func (g *Gate) deny(personaName string, reason DenyReason, offered bool) Result {
	g.logger.Warn("authorization denied",
		"persona", personaName,
		"reason", reason.String(),
		"strict", g.strict,
	)
	g.recorder.Record(audit.EventAuthDenied, map[string]any{
		audit.KeyPersona:     personaName,
		"reason":             reason.String(),
		"credential_offered": offered,
	})
	result := Result{Decision: Deny, Reason: reason}
	if p, err := persona.Parse(personaName); err == nil {
		result.Persona = p
	}
	return result
}
