// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/physiclaw/physiclaw/executor"
	"github.com/physiclaw/physiclaw/lib/authorization"
	"github.com/physiclaw/physiclaw/lib/environ"
	"github.com/physiclaw/physiclaw/lib/process"
)

// maxGoalSize bounds a goal read from stdin.
const maxGoalSize = 1 << 20

func (a *app) execCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("exec")
	personaName := flagSet.StringP("persona", "p", "", "persona to act as (required)")
	timeout := flagSet.Duration("timeout", 0, "per-call timeout (default from configuration)")
	asJSON := flagSet.Bool("json", false, "print the result as JSON")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		fmt.Fprint(a.stderr, `physiclaw exec - run a whitelisted tool as a persona

USAGE
    physiclaw exec --persona <name> [flags] <tool> [args...]

The tool identifier may contain spaces ("kubectl get") and must match
the persona's whitelist. Known identifiers map to fixed commands; any
other identifier is split into words and run directly, never through a
shell.

FLAGS
`)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *personaName == "" {
		return usagef("exec: --persona is required")
	}
	positional := flagSet.Args()
	if len(positional) == 0 {
		return usagef("exec: a tool identifier is required")
	}

	p, _, err := a.openPerimeter(*configPath)
	if err != nil {
		return err
	}
	defer p.Close()
	ctx, cancel := supervised(p)
	defer cancel()

	result := p.Execute(ctx, *personaName, executor.Request{
		Tool:    positional[0],
		Args:    positional[1:],
		Timeout: *timeout,
	})

	if *asJSON {
		encoder := json.NewEncoder(a.stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		io.WriteString(a.stdout, result.Stdout)
		io.WriteString(a.stderr, result.Stderr)
		if result.Truncated {
			fmt.Fprintln(a.stderr, "physiclaw: output truncated")
		}
	}

	switch {
	case result.Failure != nil:
		if *asJSON {
			return exitStatus(process.ExitFailure)
		}
		return result.Failure
	case result.ExitCode != nil && *result.ExitCode != 0:
		return exitStatus(*result.ExitCode)
	case !result.OK:
		return exitStatus(process.ExitFailure)
	}
	return nil
}

func (a *app) goalCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("goal")
	personaName := flagSet.StringP("persona", "p", "", "persona the goal is for (required)")
	key := flagSet.String("key", "", "static credential (default $PHYSICLAW_API_KEY)")
	token := flagSet.String("token", "", "bearer token (default $PHYSICLAW_TOKEN)")
	asJSON := flagSet.Bool("json", false, "print the admission as JSON")
	flagSet.Usage = func() {
		fmt.Fprint(a.stderr, `physiclaw goal - submit a goal through the authorization gate

USAGE
    physiclaw goal --persona <name> [flags] <goal text | ->

A goal of "-" is read from stdin. Only the goal's length and digest are
recorded in the audit log.

FLAGS
`)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *personaName == "" {
		return usagef("goal: --persona is required")
	}
	if flagSet.NArg() == 0 {
		return usagef("goal: goal text is required")
	}

	goal := strings.Join(flagSet.Args(), " ")
	if goal == "-" {
		data, err := io.ReadAll(io.LimitReader(a.stdin, maxGoalSize+1))
		if err != nil {
			return fmt.Errorf("reading goal: %w", err)
		}
		if len(data) > maxGoalSize {
			return fmt.Errorf("goal exceeds %d bytes", maxGoalSize)
		}
		goal = strings.TrimSpace(string(data))
	}
	if strings.TrimSpace(goal) == "" {
		return usagef("goal: goal text is empty")
	}

	credentials := authorization.Credentials{Key: *key, Token: *token}
	if credentials.Key == "" {
		credentials.Key, _ = environ.Lookup(a.environ, "PHYSICLAW_API_KEY")
	}
	if credentials.Token == "" {
		credentials.Token, _ = environ.Lookup(a.environ, "PHYSICLAW_TOKEN")
	}

	p, _, err := a.openPerimeter(*configPath)
	if err != nil {
		return err
	}
	defer p.Close()
	_, cancel := supervised(p)
	defer cancel()

	decision := p.Authorize(*personaName, credentials)
	if !decision.Allowed() {
		return errors.New("authorization denied: " + decision.Reason.String())
	}
	goalID, err := p.SubmitGoal(*personaName, goal)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(a.stdout).Encode(map[string]any{
			"goal_id": goalID,
			"persona": string(decision.Persona),
			"rule":    string(decision.Rule),
		})
	}
	fmt.Fprintln(a.stdout, goalID)
	return nil
}
