// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoBindRoots is returned when none of the configured system roots
// exist, which would leave the sandbox without a userland.
var ErrNoBindRoots = errors.New("none of the sandbox bind roots exist on this host")

// DefaultBindRoots are the host directories mounted read-only.
func DefaultBindRoots() []string {
	return []string{"/usr", "/bin", "/lib", "/lib64", "/etc"}
}

// BwrapOptions holds options for building a bwrap command line.
type BwrapOptions struct {
	// ShareNetwork keeps the host network namespace.
	ShareNetwork bool

	// BindRoots are mounted read-only when they exist.
	BindRoots []string

	// WorkDir is mounted read-only and becomes the working directory
	// when it is absolute and exists. Otherwise the command starts in
	// /tmp.
	WorkDir string

	// Env is the sandboxed process environment in KEY=VALUE form.
	Env []string

	// Command is the program and arguments to run inside.
	Command []string
}

// BwrapBuilder builds bubblewrap command-line arguments.
type BwrapBuilder struct {
	args []string

	// isDir reports whether a host path is an existing directory.
	isDir func(path string) bool
}

// NewBwrapBuilder creates a builder that inspects the real filesystem.
func NewBwrapBuilder() *BwrapBuilder {
	return &BwrapBuilder{isDir: isDirectory}
}

// Build constructs the bwrap arguments (without the bwrap path).
func (b *BwrapBuilder) Build(opts *BwrapOptions) ([]string, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	b.args = []string{}

	b.addSecurity()
	b.addNamespaces(opts.ShareNetwork)
	if err := b.addBindRoots(opts.BindRoots); err != nil {
		return nil, err
	}
	b.addBaseMounts()
	b.addWorkDir(opts.WorkDir)
	b.addEnvironment(opts.Env)

	b.args = append(b.args, "--")
	b.args = append(b.args, opts.Command...)
	return b.args, nil
}

// addSecurity ties the sandbox lifetime to physiclaw and detaches it
// from the controlling terminal. bwrap always drops capabilities and
// sets PR_SET_NO_NEW_PRIVS.
func (b *BwrapBuilder) addSecurity() {
	b.args = append(b.args, "--die-with-parent", "--new-session")
}

func (b *BwrapBuilder) addNamespaces(shareNetwork bool) {
	b.args = append(b.args, "--unshare-all")
	if shareNetwork {
		b.args = append(b.args, "--share-net")
	}
}

func (b *BwrapBuilder) addBindRoots(roots []string) error {
	mounted := 0
	for _, root := range roots {
		if !b.isDir(root) {
			continue
		}
		b.args = append(b.args, "--ro-bind", root, root)
		mounted++
	}
	if mounted == 0 {
		return fmt.Errorf("%w (tried %s)", ErrNoBindRoots, strings.Join(roots, ", "))
	}
	return nil
}

func (b *BwrapBuilder) addBaseMounts() {
	b.args = append(b.args,
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
		"--dir", "/run",
	)
}

func (b *BwrapBuilder) addWorkDir(workDir string) {
	if workDir != "" && filepath.IsAbs(workDir) && b.isDir(workDir) {
		clean := filepath.Clean(workDir)
		b.args = append(b.args, "--ro-bind", clean, clean, "--chdir", clean)
		return
	}
	b.args = append(b.args, "--chdir", "/tmp")
}

// addEnvironment clears the inherited environment and sets each
// variable, sorted by key for deterministic output.
func (b *BwrapBuilder) addEnvironment(env []string) {
	b.args = append(b.args, "--clearenv")

	values := make(map[string]string, len(env))
	for _, entry := range env {
		if key, value, found := strings.Cut(entry, "="); found && key != "" {
			values[key] = value
		}
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.args = append(b.args, "--setenv", key, values[key])
	}
}

// BwrapPath locates bwrap, checking standard locations before PATH.
func BwrapPath() (string, error) {
	for _, path := range []string{"/usr/bin/bwrap", "/usr/local/bin/bwrap", "/bin/bwrap"} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	if path, err := exec.LookPath("bwrap"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("bwrap not found in standard locations or PATH")
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
