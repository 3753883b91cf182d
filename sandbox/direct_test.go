// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

var testEnv = []string{"PATH=/usr/bin:/bin"}

func TestDirectSuccess(t *testing.T) {
	result := Direct{}.Run(context.Background(), Invocation{
		Argv: []string{"sh", "-c", "echo hello; echo oops >&2"},
		Env:  testEnv,
	})
	if !result.OK || result.Failure != nil {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.Stderr != "oops\n" {
		t.Errorf("stderr = %q", result.Stderr)
	}
	if result.Outcome() != "ok" {
		t.Errorf("outcome = %q", result.Outcome())
	}
	if result.Sandboxed {
		t.Error("direct runs are not sandboxed")
	}
}

func TestDirectExitNonzero(t *testing.T) {
	result := Direct{}.Run(context.Background(), Invocation{
		Argv: []string{"sh", "-c", "exit 3"},
		Env:  testEnv,
	})
	if result.OK {
		t.Fatal("expected failure")
	}
	if result.Failure != nil {
		t.Fatalf("nonzero exit is not a failure: %v", result.Failure)
	}
	if result.ExitCode == nil || *result.ExitCode != 3 {
		t.Errorf("exit code = %v, want 3", result.ExitCode)
	}
	if result.Outcome() != "exit_nonzero" {
		t.Errorf("outcome = %q", result.Outcome())
	}
}

func TestDirectNotFound(t *testing.T) {
	result := Direct{}.Run(context.Background(), Invocation{
		Argv: []string{"physiclaw-no-such-tool-xyz"},
		Env:  testEnv,
	})
	if result.Failure == nil || result.Failure.Kind != FailureNotFound {
		t.Fatalf("expected not_found, got %+v", result)
	}
	if result.ExitCode != nil {
		t.Errorf("exit code should be nil, got %d", *result.ExitCode)
	}
}

func TestDirectMissingWorkDir(t *testing.T) {
	result := Direct{}.Run(context.Background(), Invocation{
		Argv: []string{"true"},
		Env:  testEnv,
		Dir:  "/nonexistent-dir-xyz",
	})
	if result.Failure == nil || result.Failure.Kind != FailureSpawn {
		t.Fatalf("expected spawn failure, got %+v", result)
	}
	if result.Outcome() == string(FailureNotFound) {
		t.Error("a missing working directory is not a missing tool")
	}
	if !strings.Contains(result.Failure.Message, "working directory") {
		t.Errorf("message = %q", result.Failure.Message)
	}

	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	result = Direct{}.Run(context.Background(), Invocation{Argv: []string{"true"}, Env: testEnv, Dir: file})
	if result.Failure == nil || result.Failure.Kind != FailureSpawn {
		t.Fatalf("file as working directory: expected spawn failure, got %+v", result)
	}
}

func TestDirectEmptyCommand(t *testing.T) {
	result := Direct{}.Run(context.Background(), Invocation{})
	if result.Failure == nil || result.Failure.Kind != FailureSpawn {
		t.Fatalf("expected spawn failure, got %+v", result)
	}
}

func TestDirectEnvironmentIsExact(t *testing.T) {
	t.Setenv("PHYSICLAW_TEST_LEAK", "leaked")
	result := Direct{}.Run(context.Background(), Invocation{
		Argv: []string{"/bin/sh", "-c", "env"},
		Env:  []string{"ONLY=this", "PATH=/usr/bin:/bin"},
	})
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if strings.Contains(result.Stdout, "PHYSICLAW_TEST_LEAK") {
		t.Error("parent environment leaked into the child")
	}
	if !strings.Contains(result.Stdout, "ONLY=this") {
		t.Errorf("child environment missing ONLY: %s", result.Stdout)
	}
}

func TestDirectTimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	result := Direct{}.Run(context.Background(), Invocation{
		// The background sleep is a grandchild in the same group.
		Argv:    []string{"sh", "-c", "sleep 30 & echo $! > " + pidFile + "; wait"},
		Env:     testEnv,
		Timeout: 300 * time.Millisecond,
	})
	if result.Failure == nil || result.Failure.Kind != FailureTimeout {
		t.Fatalf("expected timeout, got %+v", result)
	}
	if result.ExitCode != nil {
		t.Errorf("timed-out call should have no exit code, got %d", *result.ExitCode)
	}
	if result.Duration > 10*time.Second {
		t.Errorf("timeout took %v", result.Duration)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing pid: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild %d still alive after timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// processAlive treats zombies as dead: an orphan killed with its
// group may wait for a reaper that is not this test.
func processAlive(pid int) bool {
	if syscall.Kill(pid, 0) != nil {
		return false
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return false
	}
	_, rest, found := strings.Cut(string(stat), ") ")
	return !found || !strings.HasPrefix(rest, "Z")
}

func TestDirectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	result := Direct{}.Run(ctx, Invocation{
		Argv: []string{"sleep", "30"},
		Env:  testEnv,
	})
	if result.Failure == nil || result.Failure.Kind != FailureSpawn {
		t.Fatalf("expected error outcome on cancel, got %+v", result)
	}
}

func TestCappedBuffer(t *testing.T) {
	var buffer cappedBuffer
	chunk := make([]byte, maxCapture-10)
	if n, err := buffer.Write(chunk); n != len(chunk) || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if n, _ := buffer.Write(make([]byte, 100)); n != 100 {
		t.Errorf("Write should report the full length, got %d", n)
	}
	if len(buffer.data) != maxCapture {
		t.Errorf("len = %d, want %d", len(buffer.data), maxCapture)
	}
	if !buffer.truncated {
		t.Error("expected truncated")
	}
}

func TestResultOutcome(t *testing.T) {
	denied := Denied("rm -rf", "sre")
	if denied.Outcome() != "security_violation" {
		t.Errorf("denied outcome = %q", denied.Outcome())
	}
	if denied.Err() == nil || !strings.Contains(denied.Err().Error(), `"rm -rf"`) {
		t.Errorf("denied error = %v", denied.Err())
	}
	if denied.Failure.Denial.Persona != "sre" {
		t.Errorf("denial persona = %q", denied.Failure.Denial.Persona)
	}

	unavailable := Fail(FailureSandboxUnavailable, "bwrap missing")
	if unavailable.Outcome() != "sandbox_unavailable" {
		t.Errorf("unavailable outcome = %q", unavailable.Outcome())
	}
	if (Result{OK: true}).Err() != nil {
		t.Error("successful result should have nil Err")
	}
}
