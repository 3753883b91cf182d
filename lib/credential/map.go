// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"

	"github.com/physiclaw/physiclaw/lib/persona"
	"github.com/physiclaw/physiclaw/lib/sealed"
	"github.com/physiclaw/physiclaw/lib/secret"
)

// Wildcard is the persona name that grants a key to every persona.
const Wildcard = "*"

// ErrMalformed is returned for entries that are not persona:key.
var ErrMalformed = errors.New("malformed credential entry")

type span struct {
	offset int
	length int
}

// Map is a parsed, read-only credential map. The zero Map and a nil
// *Map are empty.
type Map struct {
	buffer *secret.Buffer
	grants map[string][]span
	count  int
}

// Parse reads a map from its text form. Empty text yields an empty
// map. Persona names are normalized; unknown personas are an error so
// a typo cannot silently lock a persona out.
func Parse(text string) (*Map, error) {
	return parse([]byte(text))
}

// ParseBuffer is Parse over protected memory. The buffer is borrowed.
func ParseBuffer(source *secret.Buffer) (*Map, error) {
	return parse(source.Bytes())
}

func parse(text []byte) (*Map, error) {
	type grant struct {
		persona string
		key     []byte
	}
	var grants []grant
	total := 0
	for position, entry := range bytes.Split(text, []byte(",")) {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 {
			continue
		}
		name, key, found := bytes.Cut(entry, []byte(":"))
		if !found {
			return nil, fmt.Errorf("%w: entry %d has no ':'", ErrMalformed, position+1)
		}
		key = bytes.TrimSpace(key)
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: entry %d has an empty key", ErrMalformed, position+1)
		}
		personaName := persona.Normalize(string(name))
		if personaName != Wildcard {
			parsed, err := persona.Parse(personaName)
			if err != nil {
				return nil, fmt.Errorf("credential entry %d: %w", position+1, err)
			}
			personaName = string(parsed)
		}
		grants = append(grants, grant{persona: personaName, key: key})
		total += len(key)
	}

	result := &Map{grants: make(map[string][]span)}
	if len(grants) == 0 {
		return result, nil
	}

	buffer, err := secret.New(total)
	if err != nil {
		return nil, err
	}
	offset := 0
	for _, entry := range grants {
		copy(buffer.Slice(offset, len(entry.key)), entry.key)
		result.grants[entry.persona] = append(result.grants[entry.persona], span{offset: offset, length: len(entry.key)})
		offset += len(entry.key)
	}
	result.buffer = buffer
	result.count = len(grants)
	return result, nil
}

// LoadSealed decrypts an age file with the identities in identityPath
// and parses the plaintext as a map.
func LoadSealed(path, identityPath string) (*Map, error) {
	plaintext, err := sealed.OpenFile(path, identityPath)
	if err != nil {
		return nil, fmt.Errorf("opening sealed credentials: %w", err)
	}
	defer plaintext.Close()
	return ParseBuffer(plaintext)
}

// Len returns the number of grants.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Configured reports whether the map has at least one grant.
func (m *Map) Configured() bool { return m.Len() > 0 }

// Match reports whether key is granted to the named persona, directly
// or through the wildcard. Every candidate is compared in constant
// time and the loop does not exit early.
func (m *Map) Match(personaName string, key []byte) bool {
	if m.Len() == 0 || len(key) == 0 {
		return false
	}
	name := persona.Normalize(personaName)
	matched := 0
	for _, bucket := range [][]span{m.grants[name], m.grants[Wildcard]} {
		for _, candidate := range bucket {
			matched |= subtle.ConstantTimeCompare(m.buffer.Slice(candidate.offset, candidate.length), key)
		}
	}
	return matched == 1
}

// Personas returns the persona names with at least one grant, sorted,
// with the wildcard included when present.
func (m *Map) Personas() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.grants))
	for name := range m.grants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close zeroes the key material.
func (m *Map) Close() error {
	if m == nil || m.buffer == nil {
		return nil
	}
	return m.buffer.Close()
}
