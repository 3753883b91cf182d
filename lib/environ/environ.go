// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package environ derives the environment a tool subprocess receives.
//
// [Sanitize] is a pure function over an environment slice in
// os.Environ form. It never reads or mutates the live process
// environment. A key survives only if it passes the denylist: provider
// credential prefixes, secret-looking substrings, and variables that
// inject code into the dynamic loader or shell. Safe base keys such as
// PATH and HOME are not exempt from the denylist. The persona marker is
// always written last and overrides any inherited value.
package environ

import (
	"sort"
	"strings"

	"github.com/physiclaw/physiclaw/lib/persona"
)

// PersonaKey is the variable through which a tool learns which persona
// invoked it.
const PersonaKey = "PHYSICLAW_PERSONA"

// DefaultPath is used when the source environment carries no PATH.
const DefaultPath = "/usr/local/bin:/usr/bin:/bin"

// SafeKeys are always carried over when present and not denied.
var SafeKeys = []string{
	"PATH", "HOME", "USER", "LOGNAME",
	"LANG", "LC_ALL", "LC_CTYPE", "TERM", "TZ",
}

// deniedPrefixes name credential-bearing provider and CI namespaces.
// PHYSICLAW_ covers this process's own configuration, which includes
// the credential map and the token signing secret.
var deniedPrefixes = []string{
	"AWS_", "AZURE_", "ARM_", "GCP_", "GOOGLE_", "GCLOUD_", "CLOUDSDK_",
	"DIGITALOCEAN_", "HEROKU_",
	"GITHUB_", "GITLAB_", "CI_", "CIRCLE", "TRAVIS_", "JENKINS_", "BUILDKITE_",
	"SLACK_", "DISCORD_", "TWILIO_", "SENDGRID_", "MAILGUN_",
	"SEGMENT_", "MIXPANEL_", "POSTHOG_", "AMPLITUDE_",
	"SENTRY_", "DATADOG_", "DD_", "NEWRELIC_", "NEW_RELIC_",
	"STRIPE_", "PAYPAL_", "BRAINTREE_",
	"VAULT_", "OPENAI_", "ANTHROPIC_", "HF_",
	"PHYSICLAW_",
	// Dynamic loader injection on Linux and macOS.
	"LD_", "DYLD_",
}

// deniedSubstrings catch secrets that do not follow a provider prefix.
var deniedSubstrings = []string{
	"KEY", "SECRET", "TOKEN", "PASSWORD", "PASSWD", "CREDENTIAL",
}

// deniedExact are shell and libc variables that execute or redirect
// code in the child.
var deniedExact = map[string]bool{
	"IFS":            true,
	"BASH_ENV":       true,
	"ENV":            true,
	"LOCPATH":        true,
	"GCONV_PATH":     true,
	"PROMPT_COMMAND": true,
}

// Denied reports whether key must never reach a subprocess.
// Comparison is case-insensitive.
func Denied(key string) bool {
	upper := strings.ToUpper(key)
	if deniedExact[upper] {
		return true
	}
	for _, prefix := range deniedPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	for _, fragment := range deniedSubstrings {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// Sanitize returns the environment for a subprocess acting as p, in
// KEY=VALUE form sorted by key. source is not modified. Entries
// without "=" and empty keys are dropped. When a key repeats, the last
// occurrence wins, matching exec.Cmd.
func Sanitize(source []string, p persona.Persona) []string {
	kept := make(map[string]string, len(source))
	for _, entry := range source {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		if Denied(key) {
			continue
		}
		kept[key] = value
	}
	if _, ok := kept["PATH"]; !ok {
		kept["PATH"] = DefaultPath
	}
	kept[PersonaKey] = string(p)

	keys := make([]string, 0, len(kept))
	for key := range kept {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]string, len(keys))
	for position, key := range keys {
		result[position] = key + "=" + kept[key]
	}
	return result
}

// Minimal keeps only SafeKeys that pass the denylist. It is the
// environment of the bwrap process itself, which is visible to the
// sandboxed child through /proc even though the child's own environment
// is rebuilt with --clearenv.
func Minimal(source []string) []string {
	values := Map(source)
	result := make([]string, 0, len(SafeKeys))
	for _, key := range SafeKeys {
		if value, ok := values[key]; ok && !Denied(key) {
			result = append(result, key+"="+value)
		}
	}
	if _, ok := values["PATH"]; !ok {
		result = append(result, "PATH="+DefaultPath)
	}
	return result
}

// Lookup returns the value of key in an environment slice.
func Lookup(environment []string, key string) (string, bool) {
	for position := len(environment) - 1; position >= 0; position-- {
		name, value, found := strings.Cut(environment[position], "=")
		if found && name == key {
			return value, true
		}
	}
	return "", false
}

// Map converts an environment slice to a map, last occurrence winning.
func Map(environment []string) map[string]string {
	result := make(map[string]string, len(environment))
	for _, entry := range environment {
		if key, value, found := strings.Cut(entry, "="); found && key != "" {
			result[key] = value
		}
	}
	return result
}
