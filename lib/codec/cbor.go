// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds physiclaw's CBOR configuration. CBOR is used only
// where bytes are signed: the payload of a bearer token. Signing needs
// a canonical form, so the encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2) and the same logical value always produces identical
// bytes.
//
// JSON remains the format for everything an operator reads: audit
// lines, CLI output, config files.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Tokens are small. Anything larger is hostile input.
		MaxArrayElements: 1024,
		MaxMapPairs:      1024,
		MaxNestedLevels:  8,
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR item from data into v. Trailing
// bytes are an error.
func Unmarshal(data []byte, v any) error {
	rest, err := decMode.UnmarshalFirst(data, v)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("codec: %d trailing bytes after CBOR item", len(rest))
	}
	return nil
}
