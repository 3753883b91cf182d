// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "context"

// Direct runs invocations as ordinary child processes. Isolation comes
// only from the sanitized environment and the process group.
type Direct struct{}

// Run executes the invocation without a sandbox.
func (Direct) Run(ctx context.Context, invocation Invocation) Result {
	return runProcess(ctx, processSpec{
		argv:    invocation.Argv,
		env:     invocation.Env,
		dir:     invocation.Dir,
		timeout: invocation.Timeout,
	})
}
