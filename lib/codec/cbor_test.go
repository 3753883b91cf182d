// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type claims struct {
	Role   string   `cbor:"1,keyasint"`
	Scopes []string `cbor:"2,keyasint,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding is not deterministic: %x vs %x", first, again)
		}
	}
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	data, err := Marshal(claims{Role: "sre"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded claims
	if err := Unmarshal(append(data, 0x00), &decoded); err == nil {
		t.Fatal("expected error for trailing bytes")
	}
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Role != "sre" {
		t.Errorf("Role = %q, want sre", decoded.Role)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var decoded claims
	if err := Unmarshal([]byte{0xff, 0xff, 0xff}, &decoded); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}
