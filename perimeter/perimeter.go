// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package perimeter is the process-wide context a transport or the CLI
// holds: one value built at startup from the configuration, owning the
// audit ledger, the credential map, the token key, the authorization
// gate, and the sandbox runner.
//
// Construction order is fixed by [New]: logger, ledger, credential
// map, token key, gate, sandbox policy and runner. Everything except
// the ledger is read-only afterwards, so a Perimeter is safe for
// concurrent use by any number of requests.
//
// The egress watchdog is not started by New. Call [Perimeter.Supervisor]
// and [Supervisor.Start] once the process is ready to be watched; the
// supervisor is the only place that decides to exit on egress.
package perimeter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/physiclaw/physiclaw/executor"
	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/authorization"
	"github.com/physiclaw/physiclaw/lib/clock"
	"github.com/physiclaw/physiclaw/lib/config"
	"github.com/physiclaw/physiclaw/lib/credential"
	"github.com/physiclaw/physiclaw/lib/persona"
	"github.com/physiclaw/physiclaw/lib/process"
	"github.com/physiclaw/physiclaw/lib/secret"
	"github.com/physiclaw/physiclaw/lib/servicetoken"
	"github.com/physiclaw/physiclaw/lib/watchdog"
	"github.com/physiclaw/physiclaw/sandbox"
)

// Options carries the dependencies New does not derive from the
// configuration. Zero values select production behavior.
type Options struct {
	Logger *slog.Logger
	Clock  clock.Clock

	// Environ supplies the environment tool processes are sanitized
	// from. Nil means os.Environ.
	Environ func() []string

	// Runner replaces the runner the sandbox policy selects.
	Runner sandbox.Runner

	// Enumerator replaces the procfs connection enumerator.
	Enumerator watchdog.Enumerator

	// Exit terminates the process on egress. Nil means os.Exit.
	Exit process.ExitFunc
}

// Perimeter is the enforcement context.
type Perimeter struct {
	config  *config.Config
	logger  *slog.Logger
	clock   clock.Clock
	environ func() []string

	ledger      *audit.Ledger
	credentials *credential.Map
	tokenKey    *servicetoken.Key
	gate        *authorization.Gate

	policy    sandbox.Policy
	runner    sandbox.Runner
	sandboxed bool

	enumerator watchdog.Enumerator
	exit       process.ExitFunc
}

// New builds the enforcement context. It fails on configuration that
// cannot be honored, such as an unreadable signing secret or sealed
// credential file, rather than starting with weaker enforcement.
func New(cfg *config.Config, options Options) (*Perimeter, error) {
	if cfg == nil {
		return nil, errors.New("perimeter: configuration is required")
	}
	perimeter := &Perimeter{
		config:     cfg,
		logger:     options.Logger,
		clock:      options.Clock,
		environ:    options.Environ,
		enumerator: options.Enumerator,
		exit:       options.Exit,
	}
	if perimeter.logger == nil {
		perimeter.logger = slog.Default()
	}
	if perimeter.clock == nil {
		perimeter.clock = clock.Real()
	}
	if perimeter.environ == nil {
		perimeter.environ = os.Environ
	}
	if perimeter.exit == nil {
		perimeter.exit = os.Exit
	}

	perimeter.reportPreviousTermination()

	ledger, err := audit.Open(audit.Config{
		Path:   audit.PathFor(cfg.DataDir),
		Clock:  perimeter.clock,
		Logger: perimeter.logger,
	})
	if err != nil {
		return nil, err
	}
	perimeter.ledger = ledger

	if perimeter.credentials, err = loadCredentials(cfg.Auth); err != nil {
		perimeter.Close()
		return nil, err
	}
	if perimeter.tokenKey, err = LoadTokenKey(cfg.Auth); err != nil {
		perimeter.Close()
		return nil, err
	}
	perimeter.gate = authorization.NewGate(authorization.Config{
		Credentials: perimeter.credentials,
		TokenKey:    perimeter.tokenKey,
		Strict:      cfg.Auth.Strict,
		Clock:       perimeter.clock,
		Recorder:    ledger,
		Logger:      perimeter.logger,
	})

	perimeter.policy = sandbox.Policy{
		Hardened:     cfg.Sandbox.Enabled,
		ShareNetwork: cfg.Sandbox.ShareNetwork,
		BindRoots:    cfg.Sandbox.BindRoots,
		BwrapPath:    cfg.Sandbox.BwrapPath,
	}
	perimeter.runner = options.Runner
	perimeter.sandboxed = cfg.Sandbox.Enabled
	if perimeter.runner == nil {
		perimeter.runner = sandbox.NewRunner(perimeter.policy, perimeter.logger)
	}

	perimeter.logger.Info("perimeter ready",
		"data_dir", cfg.DataDir,
		"hardened", cfg.Sandbox.Enabled,
		"share_network", cfg.Sandbox.ShareNetwork,
		"strict_auth", cfg.Auth.Strict,
		"credential_grants", perimeter.credentials.Len(),
		"token_verification", perimeter.tokenKey != nil,
	)
	return perimeter, nil
}

func loadCredentials(auth config.AuthConfig) (*credential.Map, error) {
	if auth.SealedCredentials != "" {
		grants, err := credential.LoadSealed(auth.SealedCredentials, auth.AgeIdentityFile)
		if err != nil {
			return nil, fmt.Errorf("loading credential map: %w", err)
		}
		return grants, nil
	}
	grants, err := credential.Parse(auth.Credentials)
	if err != nil {
		return nil, fmt.Errorf("parsing credential map: %w", err)
	}
	return grants, nil
}

// LoadTokenKey derives the token signing key from the configured
// secret file, or from the secret value when no file is set. It returns
// nil and no error when neither is configured.
func LoadTokenKey(auth config.AuthConfig) (*servicetoken.Key, error) {
	var material *secret.Buffer
	var err error
	switch {
	case auth.TokenSecretFile != "":
		material, err = secret.ReadFile(auth.TokenSecretFile)
	case auth.TokenSecret != "":
		material, err = secret.FromString(auth.TokenSecret)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading token signing secret: %w", err)
	}
	defer material.Close()
	return servicetoken.DeriveKey(material)
}

// reportPreviousTermination logs and clears the record a previous
// process left when the watchdog killed it.
func (p *Perimeter) reportPreviousTermination() {
	path := filepath.Join(p.config.DataDir, watchdog.StateFileName)
	record, found, err := watchdog.TakeState(path)
	if err != nil {
		p.logger.Warn("reading previous termination record", "path", path, "error", err)
		return
	}
	if found {
		p.logger.Warn("previous run was terminated by the egress watchdog",
			"pid", record.PID,
			"remotes", record.Remotes,
			"at", record.Timestamp,
		)
	}
}

// Config returns the configuration the perimeter was built from.
func (p *Perimeter) Config() *config.Config { return p.config }

// Ledger returns the audit ledger.
func (p *Perimeter) Ledger() *audit.Ledger { return p.ledger }

// Gate returns the authorization gate.
func (p *Perimeter) Gate() *authorization.Gate { return p.gate }

// Policy returns the sandbox policy.
func (p *Perimeter) Policy() sandbox.Policy { return p.policy }

// Authorize applies the gate to a request.
func (p *Perimeter) Authorize(claimedPersona string, credentials authorization.Credentials) authorization.Result {
	return p.gate.Check(claimedPersona, credentials)
}

// IsAuthorized reports whether the request may submit a goal.
func (p *Perimeter) IsAuthorized(claimedPersona string, credentials authorization.Credentials) bool {
	return p.gate.IsAuthorized(claimedPersona, credentials)
}

// ResolveTools returns the whitelist of the named persona in order.
func (p *Perimeter) ResolveTools(personaName string) ([]string, error) {
	return persona.ResolveTools(personaName)
}

// SubmitGoal records that a goal was accepted for a persona and
// returns its ID. The goal text is never stored; the audit record
// carries its length and a BLAKE3 digest so a transcript held
// elsewhere can be matched to it.
func (p *Perimeter) SubmitGoal(personaName, goal string) (string, error) {
	parsed, err := persona.Parse(personaName)
	if err != nil {
		return "", err
	}
	digest := blake3.Sum256([]byte(goal))
	goalID := uuid.NewString()
	p.ledger.Record(audit.EventGoal, map[string]any{
		audit.KeyPersona: string(parsed),
		"goal_id":        goalID,
		"goal_length":    utf8.RuneCountInString(goal),
		"goal_bytes":     len(goal),
		"goal_blake3":    hex.EncodeToString(digest[:]),
	})
	p.logger.Info("goal accepted", "persona", parsed, "goal_id", goalID, "length", len(goal))
	return goalID, nil
}

// Executor returns an execution boundary acting as p.
func (p *Perimeter) Executor(actor persona.Persona) (*executor.Executor, error) {
	return executor.New(executor.Config{
		Persona:        actor,
		Runner:         p.runner,
		Sandboxed:      p.sandboxed,
		Recorder:       p.ledger,
		Environ:        p.environ,
		WorkDir:        p.config.WorkDir,
		DefaultTimeout: p.config.Execution.DefaultTimeout.Std(),
		Logger:         p.logger,
	})
}

// Execute runs one tool call as the named persona. An unknown persona
// is refused like a tool outside the whitelist.
func (p *Perimeter) Execute(ctx context.Context, personaName string, request executor.Request) sandbox.Result {
	actor, err := persona.Parse(personaName)
	if err != nil {
		p.ledger.Record(audit.EventSecurityViolation, map[string]any{
			audit.KeyPersona: personaName,
			audit.KeyTool:    request.Tool,
			audit.KeyOutcome: string(sandbox.FailureDenied),
			"reason":         "unknown persona",
		})
		return sandbox.Denied(request.Tool, personaName)
	}
	boundary, err := p.Executor(actor)
	if err != nil {
		return sandbox.Fail(sandbox.FailureSpawn, "%v", err)
	}
	return boundary.Execute(ctx, request)
}

// Record appends an audit event.
func (p *Perimeter) Record(kind string, payload map[string]any) {
	p.ledger.Record(kind, payload)
}

// RecordLatency adds a retrieval latency observation.
func (p *Perimeter) RecordLatency(layer string, seconds float64) {
	p.ledger.RecordLatency(layer, seconds)
}

// ExportMetrics renders the counters in text exposition format.
func (p *Perimeter) ExportMetrics() string {
	return p.ledger.ExportMetrics()
}

// WriteMetrics writes the exposition to w.
func (p *Perimeter) WriteMetrics(w io.Writer) error {
	return p.ledger.WriteMetrics(w)
}

// Close releases key material and closes the ledger.
func (p *Perimeter) Close() error {
	var errs []error
	if p.tokenKey != nil {
		errs = append(errs, p.tokenKey.Close())
	}
	if p.credentials != nil {
		errs = append(errs, p.credentials.Close())
	}
	if p.ledger != nil {
		errs = append(errs, p.ledger.Close())
	}
	return errors.Join(errs...)
}
