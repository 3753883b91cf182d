// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"errors"
	"fmt"

	"github.com/google/shlex"

	"github.com/physiclaw/physiclaw/lib/persona"
)

// ErrEmptyCommand is returned when a tool identifier tokenizes to
// nothing.
var ErrEmptyCommand = errors.New("tool identifier resolves to an empty command")

// commands maps normalized tool identifiers to the binary and fixed
// leading arguments that implement them. This table is the one place
// a new tool is wired in. Identifiers missing here are tokenized
// shell-style and run as written.
var commands = map[string][]string{
	"kubectl get":      {"kubectl", "get"},
	"kubectl-get":      {"kubectl", "get"},
	"terraform plan":   {"terraform", "plan", "-input=false", "-no-color"},
	"terraform-plan":   {"terraform", "plan", "-input=false", "-no-color"},
	"log-aggregator":   {"journalctl", "--no-pager", "--output=short-iso"},
	"prometheus-query": {"promtool", "query", "instant"},
	"bandit-scan":      {"bandit", "-r"},
	"bandit":           {"bandit"},
	"vault-read":       {"vault", "read"},
	"dbt ls":           {"dbt", "ls"},
	"dbt-ls":           {"dbt", "ls"},
	"dbt compile":      {"dbt", "compile"},
	"sqlfluff lint":    {"sqlfluff", "lint"},
}

// Resolve maps a tool identifier and its trailing arguments to an
// argument vector. No shell is involved: an identifier such as
// "nmap; curl x" tokenizes to a program literally named "nmap;".
func Resolve(tool string, args []string) ([]string, error) {
	var argv []string
	if fixed, ok := commands[persona.Normalize(tool)]; ok {
		argv = append(argv, fixed...)
	} else {
		tokens, err := shlex.Split(tool)
		if err != nil {
			return nil, fmt.Errorf("tokenizing tool %q: %w", tool, err)
		}
		argv = tokens
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return append(argv, args...), nil
}

// Mapping is one row of the command table.
type Mapping struct {
	Tool string
	Argv []string
}

// Mappings returns how each of p's whitelisted tools resolves, in
// whitelist order.
func Mappings(p persona.Persona) []Mapping {
	tools := p.Tools()
	result := make([]Mapping, 0, len(tools))
	for _, tool := range tools {
		argv, err := Resolve(tool, nil)
		if err != nil {
			continue
		}
		result = append(result, Mapping{Tool: tool, Argv: argv})
	}
	return result
}

