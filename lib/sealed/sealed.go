// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed stores the static credential map encrypted at rest
// with age, so the file an operator drops next to the binary is not a
// plaintext list of access keys.
//
// Files may be binary age or ASCII-armored. Decrypted plaintext goes
// straight into a [secret.Buffer].
package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/physiclaw/physiclaw/lib/secret"
)

// maxSealedSize bounds the ciphertext read from disk.
const maxSealedSize = 1 << 20

// Identity is an age X25519 identity held in protected memory.
type Identity struct {
	// Key is the AGE-SECRET-KEY-1... string.
	Key *secret.Buffer

	// Recipient is the matching age1... public key.
	Recipient string
}

// Close releases the private key.
func (i *Identity) Close() error {
	if i.Key != nil {
		return i.Key.Close()
	}
	return nil
}

// GenerateIdentity creates a fresh X25519 identity.
func GenerateIdentity() (*Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	key, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting age identity: %w", err)
	}
	return &Identity{Key: key, Recipient: identity.Recipient().String()}, nil
}

// Seal encrypts plaintext to every recipient and returns armored
// ciphertext.
func Seal(plaintext []byte, recipients ...string) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	parsed := make([]age.Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		value, err := age.ParseX25519Recipient(recipient)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
		}
		parsed = append(parsed, value)
	}

	var output bytes.Buffer
	armorWriter := armor.NewWriter(&output)
	writer, err := age.Encrypt(armorWriter, parsed...)
	if err != nil {
		return nil, fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finishing encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("finishing armor: %w", err)
	}
	return output.Bytes(), nil
}

// Open decrypts ciphertext (binary or armored) with the identities in
// identityFile, which may hold several keys and comment lines in the
// format age-keygen writes. The identity buffer is borrowed, not closed.
func Open(ciphertext []byte, identityFile *secret.Buffer) (*secret.Buffer, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(identityFile.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parsing age identities: %w", err)
	}

	var source io.Reader = bytes.NewReader(ciphertext)
	buffered := bufio.NewReader(source)
	if start, _ := buffered.Peek(len(armor.Header)); string(start) == armor.Header {
		source = armor.NewReader(buffered)
	} else {
		source = buffered
	}

	reader, err := age.Decrypt(source, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed file decrypted to empty plaintext")
	}
	return secret.NewFromBytes(plaintext)
}

// OpenFile reads a sealed file and the identity file and decrypts.
func OpenFile(path, identityPath string) (*secret.Buffer, error) {
	identity, err := secret.ReadFile(identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading age identity: %w", err)
	}
	defer identity.Close()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	ciphertext, err := io.ReadAll(io.LimitReader(file, maxSealedSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(ciphertext) > maxSealedSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, maxSealedSize)
	}
	return Open(ciphertext, identity)
}
