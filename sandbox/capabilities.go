// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// detectTimeout bounds each capability check.
const detectTimeout = 5 * time.Second

// Capabilities describes what sandbox features work on this host.
type Capabilities struct {
	// Available is true when bwrap was found and answered --version.
	Available bool

	// Path is the bwrap binary, when found.
	Path string

	// Version is the first line of `bwrap --version`.
	Version string

	// UserNamespaces is false when the kernel forbids unprivileged
	// user namespaces.
	UserNamespaces bool

	// Reason explains why the sandbox is unavailable.
	Reason string
}

// Detect checks whether bwrap can actually be executed, not only
// whether a file by that name exists. explicitPath overrides discovery.
func Detect(ctx context.Context, explicitPath string) *Capabilities {
	caps := &Capabilities{UserNamespaces: userNamespacesAllowed()}

	path := explicitPath
	if path == "" {
		found, err := BwrapPath()
		if err != nil {
			caps.Reason = "bubblewrap not installed"
			return caps
		}
		path = found
	}
	caps.Path = path

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		caps.Reason = "bwrap --version failed: " + err.Error()
		return caps
	}
	caps.Version, _, _ = strings.Cut(strings.TrimSpace(string(output)), "\n")
	caps.Available = true

	if !caps.UserNamespaces {
		caps.Available = false
		caps.Reason = "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	return caps
}

// SkipReason returns why sandboxing is unavailable, or "" when it is.
func (c *Capabilities) SkipReason() string {
	if c.Available {
		return ""
	}
	if c.Reason == "" {
		return "sandbox unavailable"
	}
	return c.Reason
}

func userNamespacesAllowed() bool {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Kernels without the Debian sysctl allow them.
		return true
	}
	return strings.TrimSpace(string(data)) != "0"
}
