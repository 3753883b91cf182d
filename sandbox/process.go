// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	// maxCapture bounds each captured stream.
	maxCapture = 1 << 20

	// waitDelay bounds how long Wait keeps reading output after the
	// process group is killed. A grandchild that escaped the group
	// could otherwise hold the pipes open indefinitely.
	waitDelay = 2 * time.Second
)

// processSpec is what the shared core needs to start a process.
type processSpec struct {
	argv    []string
	env     []string
	dir     string
	timeout time.Duration
}

// runProcess starts argv in its own process group, waits for it, and
// classifies the result. On timeout or cancellation the entire group
// receives SIGKILL, so children of the tool die with it.
func runProcess(ctx context.Context, spec processSpec) Result {
	if len(spec.argv) == 0 || spec.argv[0] == "" {
		return Fail(FailureSpawn, "empty command")
	}
	if spec.dir != "" {
		if info, err := os.Stat(spec.dir); err != nil {
			return Fail(FailureSpawn, "working directory: %v", err)
		} else if !info.IsDir() {
			return Fail(FailureSpawn, "working directory %s is not a directory", spec.dir)
		}
	}
	timeout := spec.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr cappedBuffer
	command := exec.CommandContext(ctx, spec.argv[0], spec.argv[1:]...)
	command.Env = spec.env
	if command.Env == nil {
		command.Env = []string{}
	}
	command.Dir = spec.dir
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	command.Cancel = func() error {
		return syscall.Kill(-command.Process.Pid, syscall.SIGKILL)
	}
	command.WaitDelay = waitDelay

	started := time.Now()
	err := command.Run()
	result := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(started),
	}

	if err == nil {
		code := 0
		result.OK = true
		result.ExitCode = &code
		return result
	}

	if command.Process == nil {
		// Never started. The working directory was checked above, so a
		// missing file here is the program itself.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			result.Failure = &Failure{Kind: FailureNotFound, Message: err.Error()}
		} else {
			result.Failure = &Failure{Kind: FailureSpawn, Message: err.Error()}
		}
		return result
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Failure = &Failure{Kind: FailureTimeout, Message: "timed out after " + timeout.String()}
		return result
	case ctx.Err() != nil:
		result.Failure = &Failure{Kind: FailureSpawn, Message: "canceled: " + ctx.Err().Error()}
		return result
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		code := exitError.ExitCode()
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			code = 128 + int(status.Signal())
		}
		result.ExitCode = &code
		return result
	}

	// Process ran but Wait failed for another reason, such as output
	// still held open after WaitDelay.
	result.Failure = &Failure{Kind: FailureSpawn, Message: err.Error()}
	return result
}

// cappedBuffer keeps the first maxCapture bytes written to it and
// discards the rest.
type cappedBuffer struct {
	data      []byte
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := maxCapture - len(b.data)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.data = append(b.data, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string { return string(b.data) }
