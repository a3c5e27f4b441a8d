// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// Sealer encrypts and decrypts single credential values. Ciphertext is text
// so it can be stored inside a JSON envelope.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(ciphertext string) ([]byte, error)
}

// AgeSealer seals values to an age X25519 identity's recipient and opens them
// with the identity. Ciphertext is standard base64.
type AgeSealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAgeSealer parses an AGE-SECRET-KEY-1... identity.
func NewAgeSealer(identity string) (*AgeSealer, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identity))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	return &AgeSealer{identity: id, recipient: id.Recipient()}, nil
}

// NewAgeSealerFromFile reads an identity from path. Lines starting with '#'
// (as written by age-keygen) are ignored.
func NewAgeSealerFromFile(path string) (*AgeSealer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return NewAgeSealer(line)
	}
	return nil, fmt.Errorf("identity file %s contains no key", path)
}

// GenerateAgeSealer creates a sealer with a fresh identity. Anything sealed
// with it is unreadable once the process exits.
func GenerateAgeSealer() (*AgeSealer, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	return &AgeSealer{identity: id, recipient: id.Recipient()}, nil
}

// Recipient returns the public half of the identity (age1...).
func (s *AgeSealer) Recipient() string {
	return s.recipient.String()
}

func (s *AgeSealer) Seal(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *AgeSealer) Open(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
