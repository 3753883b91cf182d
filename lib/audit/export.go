// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the archive format for Export.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression accepts "none", "zstd", or "lz4".
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	case "":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", name)
	}
}

// Extension is the conventional file suffix for the format.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".jsonl.zst"
	case CompressionLZ4:
		return ".jsonl.lz4"
	default:
		return ".jsonl"
	}
}

// Export copies the audit file at path into w using the chosen
// compression and returns the number of uncompressed bytes copied.
// zstd suits the highly repetitive JSON lines; lz4 trades ratio for
// speed on very large ledgers.
func Export(path string, w io.Writer, compression Compression) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	switch compression {
	case CompressionNone:
		return io.Copy(w, file)

	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return 0, fmt.Errorf("creating zstd encoder: %w", err)
		}
		written, err := io.Copy(encoder, file)
		if err != nil {
			encoder.Close()
			return written, fmt.Errorf("compressing audit log: %w", err)
		}
		return written, encoder.Close()

	case CompressionLZ4:
		writer := lz4.NewWriter(w)
		written, err := io.Copy(writer, file)
		if err != nil {
			writer.Close()
			return written, fmt.Errorf("compressing audit log: %w", err)
		}
		return written, writer.Close()

	default:
		return 0, fmt.Errorf("unknown compression %q", compression)
	}
}

// Export writes a consistent snapshot of the ledger's file: no record
// is appended while the copy runs.
func (l *Ledger) Export(w io.Writer, compression Compression) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			l.logger.Warn("audit sync before export failed", "error", err)
		}
	}
	return Export(l.path, w, compression)
}
