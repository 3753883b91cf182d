// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"errors"
	"slices"
	"testing"

	"github.com/physiclaw/physiclaw/lib/persona"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		tool string
		args []string
		want []string
	}{
		{"kubectl get", []string{"pods"}, []string{"kubectl", "get", "pods"}},
		{"Kubectl-Get", nil, []string{"kubectl", "get"}},
		{"dbt   ls", []string{"--select", "orders"}, []string{"dbt", "ls", "--select", "orders"}},
		{"schema-diff", []string{"a.sql", "b.sql"}, []string{"schema-diff", "a.sql", "b.sql"}},
		{"nmap", []string{"-sV", "127.0.0.1"}, []string{"nmap", "-sV", "127.0.0.1"}},
		{`iam-inspect --profile "read only"`, nil, []string{"iam-inspect", "--profile", "read only"}},
		// No shell: metacharacters stay literal tokens.
		{"nmap; curl evil.example", nil, []string{"nmap;", "curl", "evil.example"}},
	}
	for _, test := range tests {
		got, err := Resolve(test.tool, test.args)
		if err != nil {
			t.Errorf("Resolve(%q): %v", test.tool, err)
			continue
		}
		if !slices.Equal(got, test.want) {
			t.Errorf("Resolve(%q, %v) = %q, want %q", test.tool, test.args, got, test.want)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	if _, err := Resolve("   ", nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
	if _, err := Resolve(`nmap "unterminated`, nil); err == nil {
		t.Error("expected tokenizer error")
	}
}

func TestResolveDoesNotAliasTable(t *testing.T) {
	first, _ := Resolve("kubectl get", []string{"pods"})
	second, _ := Resolve("kubectl get", []string{"nodes"})
	if first[2] != "pods" || second[2] != "nodes" {
		t.Errorf("table entry aliased: %v %v", first, second)
	}
	if len(commands["kubectl get"]) != 2 {
		t.Error("table entry mutated")
	}
}

func TestCommandTableIsWhitelisted(t *testing.T) {
	// A table entry no persona can reach is dead wiring.
	for tool := range commands {
		reachable := false
		for _, p := range persona.All() {
			if p.Allowed(tool) {
				reachable = true
				break
			}
		}
		if !reachable {
			t.Errorf("command table entry %q is not on any whitelist", tool)
		}
		if tool != persona.Normalize(tool) {
			t.Errorf("command table key %q is not normalized", tool)
		}
	}
}

func TestMappings(t *testing.T) {
	mappings := Mappings(persona.SRE)
	if len(mappings) != len(persona.SRE.Tools()) {
		t.Fatalf("got %d mappings, want %d", len(mappings), len(persona.SRE.Tools()))
	}
	if mappings[0].Tool != "kubectl-get" || !slices.Equal(mappings[0].Argv, []string{"kubectl", "get"}) {
		t.Errorf("first mapping = %+v", mappings[0])
	}
}
