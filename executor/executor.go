// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor is the execution boundary: the only path from a
// tool request to a spawned process.
//
// [Executor.Execute] checks the persona whitelist before anything else.
// A refused tool yields a [sandbox.FailureDenied] result and a
// security_violation audit record, and no process is started. Allowed
// tools are resolved to an argument vector, given a sanitized
// environment, and handed to the configured [sandbox.Runner]. Every
// outcome is recorded to the audit ledger.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/environ"
	"github.com/physiclaw/physiclaw/lib/persona"
	"github.com/physiclaw/physiclaw/sandbox"
)

// Request is one tool call.
type Request struct {
	Tool string
	Args []string

	// Timeout overrides the executor default when positive.
	Timeout time.Duration
}

// Config holds the dependencies of an Executor.
type Config struct {
	Persona persona.Persona

	// Runner executes resolved invocations.
	Runner sandbox.Runner

	// Sandboxed is reported in audit records. It should be true when
	// Runner is a bubblewrap runner.
	Sandboxed bool

	// Recorder receives audit events. Nil discards them.
	Recorder audit.Recorder

	// Environ supplies the environment the sanitizer filters. Nil
	// means os.Environ.
	Environ func() []string

	// WorkDir is the tool working directory. Empty means the current
	// directory.
	WorkDir string

	// DefaultTimeout applies when a request has none. Zero means
	// sandbox.DefaultTimeout.
	DefaultTimeout time.Duration

	Logger *slog.Logger
}

// Executor runs whitelisted tools for a single persona.
type Executor struct {
	persona        persona.Persona
	runner         sandbox.Runner
	sandboxed      bool
	recorder       audit.Recorder
	environ        func() []string
	workDir        string
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// New creates an Executor.
func New(config Config) (*Executor, error) {
	if !config.Persona.Valid() {
		return nil, persona.ErrUnknownPersona
	}
	if config.Runner == nil {
		return nil, errors.New("executor: runner is required")
	}
	executor := &Executor{
		persona:        config.Persona,
		runner:         config.Runner,
		sandboxed:      config.Sandboxed,
		recorder:       config.Recorder,
		environ:        config.Environ,
		workDir:        config.WorkDir,
		defaultTimeout: config.DefaultTimeout,
		logger:         config.Logger,
	}
	if executor.recorder == nil {
		executor.recorder = audit.Discard
	}
	if executor.environ == nil {
		executor.environ = os.Environ
	}
	if executor.defaultTimeout <= 0 {
		executor.defaultTimeout = sandbox.DefaultTimeout
	}
	if executor.logger == nil {
		executor.logger = slog.Default()
	}
	return executor, nil
}

// Persona returns the persona this executor acts as.
func (e *Executor) Persona() persona.Persona { return e.persona }

// Allowed reports whether tool is whitelisted for the executor's
// persona.
func (e *Executor) Allowed(tool string) bool { return e.persona.Allowed(tool) }

// Execute runs one tool call to completion. It never panics and never
// returns a Go error: every outcome, including denial, is a Result.
func (e *Executor) Execute(ctx context.Context, request Request) sandbox.Result {
	if !e.persona.Allowed(request.Tool) {
		result := sandbox.Denied(request.Tool, string(e.persona))
		e.logger.Warn("tool denied",
			"persona", e.persona,
			"tool", request.Tool,
		)
		e.recorder.Record(audit.EventSecurityViolation, map[string]any{
			audit.KeyPersona: string(e.persona),
			audit.KeyTool:    request.Tool,
			audit.KeyOutcome: result.Outcome(),
		})
		return result
	}

	callID := uuid.NewString()
	argv, err := Resolve(request.Tool, request.Args)
	if err != nil {
		result := sandbox.Fail(sandbox.FailureSpawn, "%v", err)
		e.recordCall(callID, request, result)
		return result
	}

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	e.logger.Debug("running tool",
		"persona", e.persona,
		"tool", request.Tool,
		"program", argv[0],
		"argc", len(argv)-1,
		"call_id", callID,
		"sandboxed", e.sandboxed,
	)
	result := e.runner.Run(ctx, sandbox.Invocation{
		Argv:    argv,
		Env:     environ.Sanitize(e.environ(), e.persona),
		Dir:     e.workDir,
		Timeout: timeout,
	})
	e.recordCall(callID, request, result)
	return result
}

func (e *Executor) recordCall(callID string, request Request, result sandbox.Result) {
	payload := map[string]any{
		audit.KeyPersona: string(e.persona),
		audit.KeyTool:    request.Tool,
		audit.KeyOutcome: result.Outcome(),
		"call_id":        callID,
		"duration_ms":    result.Duration.Milliseconds(),
		"sandboxed":      e.sandboxed,
		"argc":           len(request.Args),
	}
	if result.ExitCode != nil {
		payload["exit_code"] = *result.ExitCode
	}
	if result.Failure != nil {
		payload["error"] = result.Failure.Message
	}
	if result.Truncated {
		payload["truncated"] = true
	}
	e.recorder.Record(audit.EventToolCall, payload)

	logger := e.logger.With(
		"persona", e.persona,
		"tool", request.Tool,
		"outcome", result.Outcome(),
		"call_id", callID,
		"duration", result.Duration,
	)
	switch {
	case result.OK:
		logger.Info("tool call completed")
	case result.Failure != nil:
		logger.Warn("tool call failed", "error", result.Failure.Message)
	case result.ExitCode != nil:
		logger.Info("tool call exited nonzero", "exit_code", *result.ExitCode)
	default:
		logger.Warn("tool call produced no exit code")
	}
}
