// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ValidationResult holds the result of one preflight check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool
}

// Validator collects preflight checks for `physiclaw sandbox check`.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{results: make([]ValidationResult, 0)}
}

// Results returns every recorded check.
func (v *Validator) Results() []ValidationResult { return v.results }

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool { return v.errors > 0 }

func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message})
}

func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{Name: name, Passed: false, Message: message})
	v.errors++
}

// ValidateAll runs every check for the policy. When the policy is not
// hardened, sandbox checks are reported as warnings because nothing
// depends on them.
func (v *Validator) ValidateAll(ctx context.Context, policy Policy, workDir string) {
	caps := Detect(ctx, policy.BwrapPath)
	v.ValidateBwrap(caps, policy.Hardened)
	v.ValidateUserNamespaces(caps, policy.Hardened)
	v.ValidateBindRoots(policy.BindRoots)
	v.ValidateWorkDir(workDir)
	v.ValidateNetwork(policy)
}

// ValidateBwrap reports the detection result.
func (v *Validator) ValidateBwrap(caps *Capabilities, required bool) {
	if caps.Path == "" || (!caps.Available && caps.Version == "") {
		message := caps.SkipReason()
		if required {
			v.fail("bwrap", message)
		} else {
			v.warn("bwrap", message+" (hardened mode is off)")
		}
		return
	}
	v.pass("bwrap", fmt.Sprintf("available: %s (%s)", caps.Path, caps.Version))
}

// ValidateUserNamespaces reports whether bwrap can create namespaces.
func (v *Validator) ValidateUserNamespaces(caps *Capabilities, required bool) {
	if caps.UserNamespaces {
		v.pass("userns", "unprivileged user namespaces allowed")
		return
	}
	message := "unprivileged user namespaces are disabled (set kernel.unprivileged_userns_clone=1)"
	if required {
		v.fail("userns", message)
	} else {
		v.warn("userns", message)
	}
}

// ValidateBindRoots checks which read-only roots exist.
func (v *Validator) ValidateBindRoots(roots []string) {
	if len(roots) == 0 {
		roots = DefaultBindRoots()
	}
	var present, missing []string
	for _, root := range roots {
		if isDirectory(root) {
			present = append(present, root)
		} else {
			missing = append(missing, root)
		}
	}
	if len(present) == 0 {
		v.fail("bind_roots", "none exist: "+strings.Join(roots, ", "))
		return
	}
	if len(missing) > 0 {
		v.warn("bind_roots", fmt.Sprintf("mounting %s; skipping missing %s",
			strings.Join(present, ", "), strings.Join(missing, ", ")))
		return
	}
	v.pass("bind_roots", "mounting "+strings.Join(present, ", "))
}

// ValidateWorkDir checks the tool working directory. A missing
// directory is a warning: sandboxed calls fall back to /tmp.
func (v *Validator) ValidateWorkDir(workDir string) {
	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			v.fail("work_dir", fmt.Sprintf("cannot determine working directory: %v", err))
			return
		}
	}
	absolute, err := filepath.Abs(workDir)
	if err != nil {
		v.fail("work_dir", fmt.Sprintf("cannot resolve path: %v", err))
		return
	}
	info, err := os.Stat(absolute)
	if err != nil || !info.IsDir() {
		v.warn("work_dir", fmt.Sprintf("%s is not a directory; sandboxed tools start in /tmp", absolute))
		return
	}
	v.pass("work_dir", "read-only inside sandbox: "+absolute)
}

// ValidateNetwork states the network posture.
func (v *Validator) ValidateNetwork(policy Policy) {
	switch {
	case !policy.Hardened:
		v.warn("network", "direct execution shares the host network; only the egress watchdog applies")
	case policy.ShareNetwork:
		v.warn("network", "sandbox shares the host network; outbound connections are detected, not prevented")
	default:
		v.pass("network", "sandbox has no network namespace access")
	}
}

// PrintResults writes a human-readable report.
func (v *Validator) PrintResults(w io.Writer) {
	for _, result := range v.results {
		status := "PASS"
		switch {
		case !result.Passed:
			status = "FAIL"
		case result.Warning:
			status = "WARN"
		}
		fmt.Fprintf(w, "[%s] %-12s %s\n", status, result.Name, result.Message)
	}
}
