// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/physiclaw/physiclaw/lib/config"
	"github.com/physiclaw/physiclaw/lib/credential"
	"github.com/physiclaw/physiclaw/lib/persona"
	"github.com/physiclaw/physiclaw/lib/sealed"
	"github.com/physiclaw/physiclaw/lib/secret"
	"github.com/physiclaw/physiclaw/lib/servicetoken"
	"github.com/physiclaw/physiclaw/perimeter"
	"github.com/physiclaw/physiclaw/sandbox"
)

const redacted = "<redacted>"

func (a *app) tokenCmd(args []string) error {
	if len(args) == 0 || args[0] != "mint" {
		return usagef("token: expected mint")
	}
	flagSet, configPath := a.newFlagSet("token mint")
	subject := flagSet.String("subject", "", "who the token is issued to (required)")
	role := flagSet.String("role", "", "persona the token is limited to (default any)")
	scopes := flagSet.StringSlice("scope", []string{servicetoken.ScopeGoalSubmit}, "granted scopes; empty means unrestricted")
	ttl := flagSet.Duration("ttl", 0, "token lifetime (default from configuration)")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	if *subject == "" {
		return usagef("token mint: --subject is required")
	}
	if *role != "" {
		if _, err := persona.Parse(*role); err != nil {
			return usagef("token mint: %v", err)
		}
	}

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	key, err := perimeter.LoadTokenKey(cfg.Auth)
	if err != nil {
		return err
	}
	if key == nil {
		return errors.New("token mint: no signing secret configured (auth.token_secret_file or PHYSICLAW_TOKEN_SECRET)")
	}
	defer key.Close()

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL.Std()
	}
	token := servicetoken.New(*subject, persona.Normalize(*role), *scopes, lifetime, time.Now())
	raw, err := servicetoken.Mint(key, token)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, raw)
	fmt.Fprintf(a.stderr, "physiclaw: token %s expires %s\n", token.ID, time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339))
	return nil
}

func (a *app) credentialsCmd(args []string) error {
	if len(args) == 0 {
		return usagef("credentials: expected keygen or seal")
	}
	switch args[0] {
	case "keygen":
		return a.credentialsKeygenCmd(args[1:])
	case "seal":
		return a.credentialsSealCmd(args[1:])
	default:
		return usagef("credentials: unknown subcommand %q", args[0])
	}
}

func (a *app) credentialsKeygenCmd(args []string) error {
	flagSet, _ := a.newFlagSet("credentials keygen")
	output := flagSet.StringP("output", "o", "", "identity file to create (required)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		return usagef("credentials keygen: --output is required")
	}

	identity, err := sealed.GenerateIdentity()
	if err != nil {
		return err
	}
	defer identity.Close()

	file, err := os.OpenFile(*output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(file, "# public key: %s\n%s\n", identity.Recipient, identity.Key.Bytes()); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, identity.Recipient)
	return nil
}

func (a *app) credentialsSealCmd(args []string) error {
	flagSet, _ := a.newFlagSet("credentials seal")
	recipients := flagSet.StringArrayP("recipient", "r", nil, "age recipient (repeatable, required)")
	input := flagSet.StringP("input", "i", "-", "plaintext credential map, or - for stdin")
	output := flagSet.StringP("output", "o", "", "sealed output file (default stdout)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if len(*recipients) == 0 {
		return usagef("credentials seal: at least one --recipient is required")
	}

	plaintext, err := secret.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("reading credential map: %w", err)
	}
	defer plaintext.Close()

	grants, err := credential.ParseBuffer(plaintext)
	if err != nil {
		return err
	}
	count := grants.Len()
	grants.Close()

	ciphertext, err := sealed.Seal(plaintext.Bytes(), *recipients...)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = a.stdout.Write(ciphertext)
		return err
	}
	if err := os.WriteFile(*output, ciphertext, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.stderr, "physiclaw: sealed %d grants to %s\n", count, *output)
	return nil
}

func (a *app) sandboxCmd(args []string) error {
	if len(args) == 0 || args[0] != "check" {
		return usagef("sandbox: expected check")
	}
	flagSet, configPath := a.newFlagSet("sandbox check")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}
	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}

	policy := sandbox.Policy{
		Hardened:     cfg.Sandbox.Enabled,
		ShareNetwork: cfg.Sandbox.ShareNetwork,
		BindRoots:    cfg.Sandbox.BindRoots,
		BwrapPath:    cfg.Sandbox.BwrapPath,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	validator := sandbox.NewValidator()
	validator.ValidateAll(ctx, policy, cfg.WorkDir)
	validator.PrintResults(a.stdout)
	if validator.HasErrors() {
		return errors.New("sandbox check failed")
	}
	return nil
}

func (a *app) configCmd(args []string) error {
	if len(args) == 0 {
		return usagef("config: expected show or schema")
	}
	switch args[0] {
	case "show":
		return a.configShowCmd(args[1:])
	case "schema":
		data, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.stdout, "%s\n", data)
		return err
	default:
		return usagef("config: unknown subcommand %q", args[0])
	}
}

func (a *app) configShowCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("config show")
	format := flagSet.String("format", "yaml", "yaml or json")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	shown := *cfg
	if shown.Auth.Credentials != "" {
		shown.Auth.Credentials = redacted
	}

	switch *format {
	case "yaml":
		encoder := yaml.NewEncoder(a.stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(&shown); err != nil {
			return err
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(a.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(&shown)
	default:
		return usagef("config show: unknown format %q", *format)
	}
}
