// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/zeebo/blake3"
)

// chainSuffixLength is len(`,"chain":"`) + 64 hex digits + len(`"}`).
const chainSuffixLength = 10 + 64 + 2

var chainSuffix = regexp.MustCompile(`,"chain":"([0-9a-f]{64})"}$`)

// maxLineLength bounds a single audit line when reading.
const maxLineLength = 4 * 1024 * 1024

func nextChain(previous string, body []byte) string {
	hasher := blake3.New()
	hasher.Write([]byte(previous))
	hasher.Write(body)
	return hex.EncodeToString(hasher.Sum(nil))
}

// appendChain turns {"...":...} into {"...":...,"chain":"<hex>"}\n.
func appendChain(body []byte, chain string) []byte {
	line := make([]byte, 0, len(body)+chainSuffixLength+1)
	line = append(line, body[:len(body)-1]...)
	line = append(line, `,"chain":"`...)
	line = append(line, chain...)
	line = append(line, `"}`...)
	return append(line, '\n')
}

// splitChain returns the body and chain value of a written line.
func splitChain(line []byte) ([]byte, string, bool) {
	match := chainSuffix.FindSubmatch(line)
	if match == nil {
		return nil, "", false
	}
	body := make([]byte, 0, len(line)-chainSuffixLength+1)
	body = append(body, line[:len(line)-chainSuffixLength]...)
	body = append(body, '}')
	return body, string(match[1]), true
}

// recoverHead returns the chain value of the last complete line. An
// empty file starts a new chain. A file whose last line is torn or
// unchained gets a newline so the next record starts cleanly, and the
// chain restarts from empty.
func recoverHead(file *os.File) (string, error) {
	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	if size == 0 {
		return "", nil
	}

	const window = 64 * 1024
	offset := max(size-window, 0)
	tail := make([]byte, size-offset)
	if _, err := file.ReadAt(tail, offset); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	if tail[len(tail)-1] != '\n' {
		if _, err := file.Write([]byte{'\n'}); err != nil {
			return "", err
		}
		return "", errors.New("last line was incomplete")
	}
	trimmed := tail[:len(tail)-1]
	last := trimmed[bytes.LastIndexByte(trimmed, '\n')+1:]
	if _, chain, ok := splitChain(last); ok {
		return chain, nil
	}
	return "", errors.New("last line carries no chain value")
}

// VerifyReport summarizes a chain check.
type VerifyReport struct {
	// Lines is the number of lines read.
	Lines int

	// BrokenAt is the 1-based line number of the first line whose chain
	// does not match, or 0 if the chain is intact.
	BrokenAt int

	// Reason explains the break.
	Reason string
}

// Intact reports whether every line chained correctly.
func (r VerifyReport) Intact() bool { return r.BrokenAt == 0 }

// Verify recomputes the hash chain of the audit file at path.
func Verify(path string) (VerifyReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return VerifyReport{}, err
	}
	defer file.Close()
	return VerifyReader(file)
}

// VerifyReader recomputes the hash chain over r.
func VerifyReader(r io.Reader) (VerifyReport, error) {
	var report VerifyReport
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	previous := ""
	for scanner.Scan() {
		report.Lines++
		line := scanner.Bytes()
		if report.BrokenAt != 0 {
			continue
		}
		if len(line) == 0 {
			report.BrokenAt = report.Lines
			report.Reason = "empty line"
			continue
		}
		body, chain, ok := splitChain(line)
		if !ok {
			report.BrokenAt = report.Lines
			report.Reason = "missing chain value"
			continue
		}
		if expected := nextChain(previous, body); expected != chain {
			report.BrokenAt = report.Lines
			report.Reason = fmt.Sprintf("chain mismatch: have %.12s, want %.12s", chain, expected)
			continue
		}
		previous = chain
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("reading audit log: %w", err)
	}
	return report, nil
}
