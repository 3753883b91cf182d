// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// maxFileSize bounds secret files. Signing secrets and identity files
// are a few hundred bytes at most.
const maxFileSize = 64 * 1024

// ReadFile loads a secret from path, or from stdin when path is "-".
// Surrounding whitespace is trimmed; an empty result is an error.
func ReadFile(path string) (*Buffer, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}
	return readTrimmed(reader, path)
}

// FromString protects an in-memory secret such as one taken from an
// environment variable. The string itself cannot be zeroed; callers
// should prefer ReadFile.
func FromString(value string) (*Buffer, error) {
	trimmed := bytes.TrimSpace([]byte(value))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret is empty")
	}
	return NewFromBytes(trimmed)
}

func readTrimmed(reader io.Reader, name string) (*Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxFileSize+1))
	if err != nil {
		Zero(data)
		return nil, fmt.Errorf("reading secret %s: %w", name, err)
	}
	if len(data) > maxFileSize {
		Zero(data)
		return nil, fmt.Errorf("secret %s exceeds %d bytes", name, maxFileSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret %s is empty", name)
	}
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
