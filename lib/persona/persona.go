// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package persona defines the closed set of agent personas and the
// tool whitelist each one is allowed to invoke.
//
// Every persona and its whitelist live in one ordered definition table.
// [All], [Parse], and [Persona.Whitelist] are derived from that table,
// so adding a persona without a whitelist (or the reverse) is
// impossible.
//
// Whitelist matching is deliberately permissive: after normalization a
// requested tool is allowed if it equals a whitelist entry, contains
// one, or is contained by one. "kubectl get pods" is therefore allowed
// for SRE because it contains "kubectl get", and "rm" is allowed
// because it is a substring of "terraform plan". Callers that hand the
// identifier to a command mapper must keep that widening in mind.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// Persona is a named agent role.
type Persona string

// The known personas.
const (
	SRE           Persona = "sre"
	SecOps        Persona = "secops"
	DataArchitect Persona = "data_architect"
)

// ErrUnknownPersona is returned by Parse for names outside the closed
// set.
var ErrUnknownPersona = errors.New("unknown persona")

type definition struct {
	persona Persona
	tools   []string
}

// definitions is the single source of truth for personas and their
// whitelists. Order is the order ResolveTools reports.
var definitions = []definition{
	{SRE, []string{
		"kubectl-get",
		"kubectl get",
		"terraform-plan",
		"terraform plan",
		"log-aggregator",
		"prometheus-query",
	}},
	{SecOps, []string{
		"nmap",
		"bandit-scan",
		"bandit",
		"iam-inspect",
		"vault-read",
	}},
	{DataArchitect, []string{
		"dbt ls",
		"dbt-ls",
		"dbt compile",
		"sqlfluff lint",
		"schema-diff",
	}},
}

var index = buildIndex()

func buildIndex() map[Persona]Whitelist {
	result := make(map[Persona]Whitelist, len(definitions))
	for _, entry := range definitions {
		if _, duplicate := result[entry.persona]; duplicate {
			panic(fmt.Sprintf("persona: %q defined twice", entry.persona))
		}
		result[entry.persona] = newWhitelist(entry.tools)
	}
	return result
}

// All returns every known persona in definition order.
func All() []Persona {
	personas := make([]Persona, len(definitions))
	for position, entry := range definitions {
		personas[position] = entry.persona
	}
	return personas
}

// Parse resolves a persona name. Comparison is case-insensitive and
// ignores surrounding and repeated whitespace.
func Parse(name string) (Persona, error) {
	candidate := Persona(Normalize(name))
	if _, ok := index[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersona, name)
	}
	return candidate, nil
}

// Valid reports whether p is in the closed set.
func (p Persona) Valid() bool {
	_, ok := index[p]
	return ok
}

// String returns the persona name.
func (p Persona) String() string { return string(p) }

// Whitelist returns the persona's whitelist. Unknown personas get an
// empty whitelist that allows nothing.
func (p Persona) Whitelist() Whitelist {
	return index[p]
}

// Allowed reports whether tool is on p's whitelist.
func (p Persona) Allowed(tool string) bool {
	return p.Whitelist().Allowed(tool)
}

// Tools returns p's whitelist entries in definition order.
func (p Persona) Tools() []string {
	return p.Whitelist().Entries()
}

// ResolveTools returns the whitelist for a persona name, normalizing
// the name first.
func ResolveTools(name string) ([]string, error) {
	p, err := Parse(name)
	if err != nil {
		return nil, err
	}
	return p.Tools(), nil
}

// Normalize lowercases s and collapses every whitespace run to a
// single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
