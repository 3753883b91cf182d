// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package servicetoken

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/physiclaw/physiclaw/lib/codec"
	"github.com/physiclaw/physiclaw/lib/secret"
)

// macSize is the fixed size of the keyed BLAKE3 MAC.
const macSize = 32

// keyContext separates token MAC keys from any other use of the
// signing secret.
const keyContext = "physiclaw 2026-03-01 goal token mac v1"

// ScopeGoalSubmit is the scope that allows submitting goals.
const ScopeGoalSubmit = "goal:submit"

// Token is the CBOR-encoded payload of a bearer token.
type Token struct {
	// Subject names the caller for audit purposes.
	Subject string `cbor:"1,keyasint"`

	// Role is the persona the token is bound to. Empty means any.
	Role string `cbor:"2,keyasint,omitempty"`

	// Scopes are capability names. Empty means unrestricted.
	Scopes []string `cbor:"3,keyasint,omitempty"`

	// ID uniquely identifies the token in audit records.
	ID string `cbor:"4,keyasint"`

	// IssuedAt is a Unix timestamp in seconds.
	IssuedAt int64 `cbor:"5,keyasint"`

	// ExpiresAt is a Unix timestamp in seconds after which the token is
	// rejected.
	ExpiresAt int64 `cbor:"6,keyasint"`
}

// HasScope reports whether the token grants scope. A token with no
// scopes grants every scope.
func (t *Token) HasScope(scope string) bool {
	return len(t.Scopes) == 0 || slices.Contains(t.Scopes, scope)
}

// Errors returned by Verify.
var (
	ErrMalformed        = errors.New("servicetoken: token is not valid base64url")
	ErrTokenTooShort    = errors.New("servicetoken: token too short for MAC")
	ErrInvalidSignature = errors.New("servicetoken: invalid token MAC")
	ErrTokenExpired     = errors.New("servicetoken: token has expired")
)

// Key is a derived MAC key.
type Key struct {
	buffer *secret.Buffer
}

// DeriveKey derives the MAC key from a signing secret.
func DeriveKey(signingSecret *secret.Buffer) (*Key, error) {
	if signingSecret == nil || signingSecret.Len() == 0 {
		return nil, errors.New("servicetoken: signing secret is empty")
	}
	derived := make([]byte, macSize)
	blake3.DeriveKey(keyContext, signingSecret.Bytes(), derived)
	buffer, err := secret.NewFromBytes(derived)
	if err != nil {
		return nil, fmt.Errorf("servicetoken: protecting derived key: %w", err)
	}
	return &Key{buffer: buffer}, nil
}

// Close releases the key material.
func (k *Key) Close() error {
	if k == nil || k.buffer == nil {
		return nil
	}
	return k.buffer.Close()
}

func (k *Key) mac(payload []byte) ([]byte, error) {
	hasher, err := blake3.NewKeyed(k.buffer.Bytes())
	if err != nil {
		return nil, fmt.Errorf("servicetoken: keying MAC: %w", err)
	}
	hasher.Write(payload)
	return hasher.Sum(nil), nil
}

// New builds a token valid for ttl from now with a fresh ID.
func New(subject, role string, scopes []string, ttl time.Duration, now time.Time) *Token {
	return &Token{
		Subject:   subject,
		Role:      role,
		Scopes:    scopes,
		ID:        uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// Mint encodes and MACs a token and returns its header form.
func Mint(key *Key, token *Token) (string, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("servicetoken: encoding token payload: %w", err)
	}
	mac, err := key.mac(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(append(payload, mac...)), nil
}

// Verify checks a token against the key at the current time.
func Verify(key *Key, raw string) (*Token, error) {
	return VerifyAt(key, raw, time.Now())
}

// VerifyAt is like Verify but checks expiry against now.
func VerifyAt(key *Key, raw string, now time.Time) (*Token, error) {
	tokenBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(raw), "="))
	if err != nil {
		return nil, ErrMalformed
	}
	if len(tokenBytes) <= macSize {
		return nil, ErrTokenTooShort
	}

	splitPoint := len(tokenBytes) - macSize
	payload := tokenBytes[:splitPoint]
	expected, err := key.mac(payload)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(expected, tokenBytes[splitPoint:]) != 1 {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("servicetoken: decoding token payload: %w", err)
	}
	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}
	return &token, nil
}
