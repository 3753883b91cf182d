// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/physiclaw/physiclaw/lib/environ"
)

// Policy selects and configures the execution environment. It is fixed
// at startup.
type Policy struct {
	// Hardened routes every call through bwrap.
	Hardened bool

	// ShareNetwork keeps the host network inside the sandbox.
	ShareNetwork bool

	// BindRoots are mounted read-only. Empty means DefaultBindRoots.
	BindRoots []string

	// BwrapPath overrides discovery.
	BwrapPath string
}

// NewRunner returns the runner the policy selects.
func NewRunner(policy Policy, logger *slog.Logger) Runner {
	if !policy.Hardened {
		return Direct{}
	}
	return NewBubblewrap(policy, logger)
}

// Bubblewrap runs invocations inside bwrap.
type Bubblewrap struct {
	policy Policy
	logger *slog.Logger

	detectOnce sync.Once
	caps       *Capabilities
	detect     func(ctx context.Context, explicitPath string) *Capabilities
}

// NewBubblewrap creates a sandboxed runner. bwrap is detected on the
// first Run.
func NewBubblewrap(policy Policy, logger *slog.Logger) *Bubblewrap {
	if logger == nil {
		logger = slog.Default()
	}
	if len(policy.BindRoots) == 0 {
		policy.BindRoots = DefaultBindRoots()
	}
	return &Bubblewrap{policy: policy, logger: logger, detect: Detect}
}

// Capabilities returns the detection result, detecting on first use.
func (b *Bubblewrap) Capabilities(ctx context.Context) *Capabilities {
	b.detectOnce.Do(func() {
		b.caps = b.detect(ctx, b.policy.BwrapPath)
		if b.caps.Available {
			b.logger.Info("sandbox available", "bwrap", b.caps.Path, "version", b.caps.Version)
		} else {
			b.logger.Error("sandbox unavailable, hardened tool calls will fail", "reason", b.caps.SkipReason())
		}
	})
	return b.caps
}

// Command returns the full argv (bwrap path first) for an invocation
// without running it.
func (b *Bubblewrap) Command(ctx context.Context, invocation Invocation) ([]string, error) {
	caps := b.Capabilities(ctx)
	if !caps.Available {
		return nil, &Failure{Kind: FailureSandboxUnavailable, Message: caps.SkipReason()}
	}
	workDir, err := resolveWorkDir(invocation.Dir)
	if err != nil {
		return nil, &Failure{Kind: FailureSpawn, Message: err.Error()}
	}
	args, err := NewBwrapBuilder().Build(&BwrapOptions{
		ShareNetwork: b.policy.ShareNetwork,
		BindRoots:    b.policy.BindRoots,
		WorkDir:      workDir,
		Env:          invocation.Env,
		Command:      invocation.Argv,
	})
	if err != nil {
		return nil, &Failure{Kind: FailureSandboxUnavailable, Message: err.Error()}
	}
	return append([]string{caps.Path}, args...), nil
}

// resolveWorkDir makes an empty working directory explicit, so the
// sandboxed tool starts where a direct one would.
func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("working directory: %w", err)
		}
		return cwd, nil
	}
	return filepath.Abs(dir)
}

// Run executes the invocation inside bwrap.
func (b *Bubblewrap) Run(ctx context.Context, invocation Invocation) Result {
	argv, err := b.Command(ctx, invocation)
	if err != nil {
		var failure *Failure
		if !errors.As(err, &failure) {
			failure = &Failure{Kind: FailureSandboxUnavailable, Message: err.Error()}
		}
		return Result{Failure: failure, Sandboxed: true}
	}

	result := runProcess(ctx, processSpec{
		argv: argv,
		// bwrap's own environment is visible to the sandboxed child
		// through /proc, so it carries only the safe base keys.
		env:     environ.Minimal(invocation.Env),
		timeout: invocation.Timeout,
	})
	result.Sandboxed = true
	classifyBwrapFailure(&result)
	return result
}

// classifyBwrapFailure recognizes errors bwrap prints about itself,
// as opposed to output from the sandboxed program.
func classifyBwrapFailure(result *Result) {
	if result.Failure != nil || result.OK || result.ExitCode == nil || *result.ExitCode != 1 {
		return
	}
	line, _, _ := strings.Cut(result.Stderr, "\n")
	if !strings.HasPrefix(line, "bwrap: ") {
		return
	}
	switch {
	case strings.Contains(line, "execvp") && strings.Contains(line, "No such file or directory"):
		result.Failure = &Failure{Kind: FailureNotFound, Message: strings.TrimPrefix(line, "bwrap: ")}
		result.ExitCode = nil
	case strings.Contains(line, "namespace"),
		strings.Contains(line, "uid map"),
		strings.Contains(line, "Can't mount"),
		strings.Contains(line, "Operation not permitted"):
		result.Failure = &Failure{Kind: FailureSandboxUnavailable, Message: strings.TrimPrefix(line, "bwrap: ")}
		result.ExitCode = nil
	}
}
