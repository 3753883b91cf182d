// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func fakeDirs(paths ...string) func(string) bool {
	return func(path string) bool { return slices.Contains(paths, path) }
}

func TestBwrapBuilder(t *testing.T) {
	builder := &BwrapBuilder{isDir: fakeDirs("/usr", "/etc", "/srv/repo")}
	args, err := builder.Build(&BwrapOptions{
		BindRoots: []string{"/usr", "/lib64", "/etc"},
		WorkDir:   "/srv/repo",
		Env:       []string{"PATH=/usr/bin", "HOME=/home/op", "PHYSICLAW_PERSONA=sre"},
		Command:   []string{"kubectl", "get", "pods"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	argStr := strings.Join(args, " ")

	for _, want := range []string{
		"--die-with-parent --new-session",
		"--unshare-all",
		"--ro-bind /usr /usr",
		"--ro-bind /etc /etc",
		"--proc /proc --dev /dev --tmpfs /tmp --dir /run",
		"--ro-bind /srv/repo /srv/repo --chdir /srv/repo",
		"--clearenv",
	} {
		if !strings.Contains(argStr, want) {
			t.Errorf("missing %q in %s", want, argStr)
		}
	}

	if strings.Contains(argStr, "/lib64") {
		t.Error("missing bind root should be skipped")
	}
	if strings.Contains(argStr, "--share-net") {
		t.Error("network should not be shared by default")
	}

	// Environment is sorted by key.
	wantEnv := "--setenv HOME /home/op --setenv PATH /usr/bin --setenv PHYSICLAW_PERSONA sre"
	if !strings.Contains(argStr, wantEnv) {
		t.Errorf("environment not sorted: %s", argStr)
	}

	// Command comes last after the separator.
	if !strings.HasSuffix(argStr, "-- kubectl get pods") {
		t.Errorf("command not at end: %s", argStr)
	}
}

func TestBwrapBuilderShareNetwork(t *testing.T) {
	builder := &BwrapBuilder{isDir: fakeDirs("/usr")}
	args, err := builder.Build(&BwrapOptions{
		ShareNetwork: true,
		BindRoots:    []string{"/usr"},
		Command:      []string{"true"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "--unshare-all --share-net") {
		t.Errorf("expected --share-net after --unshare-all: %v", args)
	}
}

func TestBwrapBuilderWorkDirFallback(t *testing.T) {
	tests := []struct {
		name    string
		workDir string
	}{
		{"empty", ""},
		{"relative", "repo"},
		{"missing", "/does/not/exist"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			builder := &BwrapBuilder{isDir: fakeDirs("/usr", "repo")}
			args, err := builder.Build(&BwrapOptions{
				BindRoots: []string{"/usr"},
				WorkDir:   test.workDir,
				Command:   []string{"true"},
			})
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			argStr := strings.Join(args, " ")
			if !strings.Contains(argStr, "--chdir /tmp") {
				t.Errorf("expected --chdir /tmp, got %s", argStr)
			}
		})
	}
}

func TestBwrapBuilderValidation(t *testing.T) {
	builder := &BwrapBuilder{isDir: fakeDirs("/usr")}

	if _, err := builder.Build(&BwrapOptions{BindRoots: []string{"/usr"}}); err == nil {
		t.Error("expected error for empty command")
	}

	_, err := builder.Build(&BwrapOptions{
		BindRoots: []string{"/nonexistent-a", "/nonexistent-b"},
		Command:   []string{"true"},
	})
	if !errors.Is(err, ErrNoBindRoots) {
		t.Errorf("expected ErrNoBindRoots, got %v", err)
	}
}

func TestBwrapBuilderMalformedEnv(t *testing.T) {
	builder := &BwrapBuilder{isDir: fakeDirs("/usr")}
	args, err := builder.Build(&BwrapOptions{
		BindRoots: []string{"/usr"},
		Env:       []string{"NOEQUALS", "=value", "A=1", "A=2"},
		Command:   []string{"true"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	argStr := strings.Join(args, " ")
	if strings.Contains(argStr, "NOEQUALS") {
		t.Error("entry without '=' should be dropped")
	}
	if strings.Count(argStr, "--setenv") != 1 || !strings.Contains(argStr, "--setenv A 2") {
		t.Errorf("expected only the last A, got %s", argStr)
	}
}
