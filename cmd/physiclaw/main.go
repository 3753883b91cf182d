// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/physiclaw/physiclaw/lib/config"
	"github.com/physiclaw/physiclaw/lib/logging"
	"github.com/physiclaw/physiclaw/lib/process"
	"github.com/physiclaw/physiclaw/lib/version"
	"github.com/physiclaw/physiclaw/perimeter"
)

func main() {
	a := &app{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ(),
		exit:    os.Exit,
	}
	os.Exit(a.run(os.Args[1:]))
}

// app carries the process streams so subcommands can be driven from
// tests.
type app struct {
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	environ []string
	exit    process.ExitFunc

	// perimeterOptions is merged into every perimeter the app builds.
	perimeterOptions perimeter.Options
}

// usageError is reported with ExitUsage.
type usageError struct{ message string }

func (e *usageError) Error() string { return e.message }

func usagef(format string, args ...any) error {
	return &usageError{message: fmt.Sprintf(format, args...)}
}

// exitStatus asks run to exit with a specific status without printing
// an error. exec uses it to pass the tool's exit code through.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func (a *app) run(args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return process.ExitUsage
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "exec":
		err = a.execCmd(rest)
	case "goal":
		err = a.goalCmd(rest)
	case "tools":
		err = a.toolsCmd(rest)
	case "metrics":
		err = a.metricsCmd(rest)
	case "audit":
		err = a.auditCmd(rest)
	case "token":
		err = a.tokenCmd(rest)
	case "credentials":
		err = a.credentialsCmd(rest)
	case "sandbox":
		err = a.sandboxCmd(rest)
	case "config":
		err = a.configCmd(rest)
	case "wipe":
		err = a.wipeCmd(rest)
	case "version", "--version":
		fmt.Fprintln(a.stdout, version.Full())
		return process.ExitOK
	case "help", "--help", "-h":
		a.printUsage()
		return process.ExitOK
	default:
		fmt.Fprintf(a.stderr, "unknown command: %s\n\n", command)
		a.printUsage()
		return process.ExitUsage
	}
	return a.report(err)
}

func (a *app) report(err error) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return process.ExitOK
	}
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(a.stderr, "usage error: %s\n", usage.message)
		return process.ExitUsage
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return process.ExitFailure
}

func (a *app) printUsage() {
	fmt.Fprint(a.stderr, `physiclaw - local enforcement layer for persona-scoped tool execution

USAGE
    physiclaw <command> [flags] [args...]

COMMANDS
    exec              Run a whitelisted tool as a persona
    goal              Submit a goal through the authorization gate
    tools             List persona whitelists and their commands
    metrics           Print counters rebuilt from the audit log
    audit verify      Check the audit log hash chain
    audit export      Write a compressed copy of the audit log
    token mint        Mint a signed bearer token
    credentials keygen  Create an age identity for sealed credentials
    credentials seal    Encrypt a credential map to a recipient
    sandbox check     Report whether hardened execution can run here
    config show       Print the effective configuration
    config schema     Print the configuration JSON Schema
    wipe --all        Delete the data directory and audit log
    version           Show version

ENVIRONMENT
    PHYSICLAW_CONFIG     Path to a .yaml, .yml, .json, or .jsonc config file
    PHYSICLAW_DATA_DIR   Base directory for the audit log (default .physiclaw)
    PHYSICLAW_API_KEY    Static key presented by "goal"
    PHYSICLAW_TOKEN      Bearer token presented by "goal"
`)
}

// newFlagSet creates a subcommand flag set with the shared --config
// flag.
func (a *app) newFlagSet(name string) (*pflag.FlagSet, *string) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(a.stderr)
	configPath := flagSet.String("config", "", "configuration file (default $PHYSICLAW_CONFIG)")
	return flagSet, configPath
}

func (a *app) loadConfig(path string) (*config.Config, error) {
	return config.Load(path, a.environ)
}

func (a *app) logger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(cfg.Log.Format, level, a.stderr), nil
}

// openPerimeter loads the configuration and builds the enforcement
// context from it.
func (a *app) openPerimeter(configPath string) (*perimeter.Perimeter, *slog.Logger, error) {
	cfg, err := a.loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	options := a.perimeterOptions
	if options.Logger == nil {
		options.Logger = logger
	}
	if options.Exit == nil {
		options.Exit = a.exit
	}
	if options.Environ == nil {
		environment := a.environ
		options.Environ = func() []string { return environment }
	}
	p, err := perimeter.New(cfg, options)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}

// supervised returns a context canceled on SIGINT or SIGTERM with the
// egress supervisor running for its lifetime.
func supervised(p *perimeter.Perimeter) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	p.Supervisor().Start(ctx)
	return ctx, cancel
}
