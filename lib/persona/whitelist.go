// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package persona

import "strings"

// Whitelist is an ordered, immutable set of tool identifiers.
type Whitelist struct {
	entries    []string
	normalized []string
}

func newWhitelist(entries []string) Whitelist {
	whitelist := Whitelist{
		entries:    append([]string(nil), entries...),
		normalized: make([]string, len(entries)),
	}
	for position, entry := range entries {
		whitelist.normalized[position] = Normalize(entry)
	}
	return whitelist
}

// Entries returns a copy of the entries as declared.
func (w Whitelist) Entries() []string {
	return append([]string(nil), w.entries...)
}

// Len returns the number of entries.
func (w Whitelist) Len() int { return len(w.entries) }

// Allowed reports whether tool matches an entry by equality or by
// containment in either direction. An empty identifier never matches.
func (w Whitelist) Allowed(tool string) bool {
	_, ok := w.Match(tool)
	return ok
}

// Match returns the first entry tool matches.
func (w Whitelist) Match(tool string) (string, bool) {
	query := Normalize(tool)
	if query == "" {
		return "", false
	}
	for position, entry := range w.normalized {
		if query == entry || strings.Contains(query, entry) || strings.Contains(entry, query) {
			return w.entries[position], true
		}
	}
	return "", false
}
