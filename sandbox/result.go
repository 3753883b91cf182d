// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a tool call when the request names none.
const DefaultTimeout = 300 * time.Second

// Runner executes one invocation to completion.
type Runner interface {
	Run(ctx context.Context, invocation Invocation) Result
}

// Invocation is a fully resolved command.
type Invocation struct {
	// Argv is the program and its arguments. Argv[0] is resolved
	// against PATH when it contains no slash.
	Argv []string

	// Env is the complete child environment in KEY=VALUE form. A nil
	// Env gives the child an empty environment, never the parent's.
	Env []string

	// Dir is the working directory. Empty means the caller's.
	Dir string

	// Timeout bounds the call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// FailureKind classifies why a call did not produce an exit code of 0.
type FailureKind string

const (
	// FailureDenied means the tool was refused by the persona
	// whitelist. No process was started.
	FailureDenied FailureKind = "security_violation"

	// FailureNotFound means the program does not exist.
	FailureNotFound FailureKind = "not_found"

	// FailureTimeout means the call ran past its deadline and its
	// process group was killed.
	FailureTimeout FailureKind = "timeout"

	// FailureSandboxUnavailable means hardened mode was requested but
	// the sandbox could not be constructed.
	FailureSandboxUnavailable FailureKind = "sandbox_unavailable"

	// FailureSpawn covers every other reason the process could not run
	// to completion: permission errors, cancellation, bad arguments.
	FailureSpawn FailureKind = "error"
)

// Denial identifies a refused tool request.
type Denial struct {
	Tool    string `json:"tool"`
	Persona string `json:"persona"`
}

// Failure describes a call that did not run to an exit code.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Denial  *Denial     `json:"denial,omitempty"`
}

func (f *Failure) Error() string {
	if f.Denial != nil {
		return fmt.Sprintf("%s: tool %q is not whitelisted for persona %q", f.Kind, f.Denial.Tool, f.Denial.Persona)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is the outcome of a Run.
type Result struct {
	// OK is true only when the process exited with status 0.
	OK bool `json:"ok"`

	// ExitCode is nil when the process never produced one (not started,
	// killed on timeout). A process killed by a signal reports
	// 128+signal, as shells do.
	ExitCode *int `json:"exit_code,omitempty"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// Truncated is set when either stream exceeded the capture limit.
	Truncated bool `json:"truncated,omitempty"`

	Duration time.Duration `json:"duration_ns"`

	// Sandboxed reports whether the call went through bwrap.
	Sandboxed bool `json:"sandboxed"`

	Failure *Failure `json:"failure,omitempty"`
}

// Outcome is the label used in audit records and metrics: "ok",
// "exit_nonzero", or the failure kind.
func (r Result) Outcome() string {
	switch {
	case r.Failure != nil:
		return string(r.Failure.Kind)
	case r.OK:
		return "ok"
	default:
		return "exit_nonzero"
	}
}

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Fail builds a Result carrying only a failure.
func Fail(kind FailureKind, format string, args ...any) Result {
	return Result{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Denied builds the Result for a whitelist refusal.
func Denied(tool, persona string) Result {
	return Result{Failure: &Failure{
		Kind:    FailureDenied,
		Message: "tool is not whitelisted for this persona",
		Denial:  &Denial{Tool: tool, Persona: persona},
	}}
}
