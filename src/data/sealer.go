package data

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

var ErrUnsealable = errors.New("sealed credential could not be opened")

// Sealer encrypts session credentials at rest. A Sealer without a key
// passes values through unchanged.
type Sealer struct {
	key *[32]byte
}

// NewSealer derives a secretbox key from secret. An empty secret disables sealing.
func NewSealer(secret string) *Sealer {
	if strings.TrimSpace(secret) == "" {
		return &Sealer{}
	}
	k := sha256.Sum256([]byte(secret))
	return &Sealer{key: &k}
}

func (s *Sealer) Enabled() bool {
	return s != nil && s.key != nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	if !s.Enabled() || plain == "" || strings.HasPrefix(plain, sealedPrefix) {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if !s.Enabled() {
		return "", ErrUnsealable
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil || len(raw) < 24 {
		return "", ErrUnsealable
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, s.key)
	if !ok {
		return "", ErrUnsealable
	}
	return string(plain), nil
}
