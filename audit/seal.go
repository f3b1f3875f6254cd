// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of the sink sealing key supplied by the
// host and of the derived frame key.
const KeySize = 32

// sealVersion is prepended to every sealed frame and bound as
// additional authenticated data, so tampering with it fails
// authentication.
const sealVersion byte = 0x01

// hkdfInfoSeal is the HKDF info string for deriving the frame-sealing
// key from the host-supplied sink key. Changing it invalidates all
// previously sealed sinks.
var hkdfInfoSeal = []byte("warden.audit.seal.v1")

// Errors returned by unseal.
var (
	ErrSealedFrameTooShort = errors.New("audit: sealed frame too short")
	ErrSealVersion         = errors.New("audit: unsupported sealed frame version")
	ErrSealAuthentication  = errors.New("audit: sealed frame failed authentication")
)

// sealer encrypts and decrypts sink frames with XChaCha20-Poly1305
// under a key derived from the host-supplied sink key.
type sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// newSealer derives the frame key via HKDF-SHA256 and constructs the
// AEAD. The sinkKey must be KeySize bytes.
func newSealer(sinkKey []byte) (*sealer, error) {
	if len(sinkKey) != KeySize {
		return nil, fmt.Errorf("audit: sink key must be %d bytes, got %d", KeySize, len(sinkKey))
	}

	frameKey := make([]byte, KeySize)
	reader := hkdf.New(sha256.New, sinkKey, nil, hkdfInfoSeal)
	if _, err := io.ReadFull(reader, frameKey); err != nil {
		return nil, fmt.Errorf("audit: deriving frame key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(frameKey)
	if err != nil {
		return nil, fmt.Errorf("audit: constructing AEAD: %w", err)
	}
	return &sealer{aead: aead}, nil
}

// seal encrypts a frame: version byte, random 24-byte nonce,
// ciphertext with the version as AAD.
func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("audit: generating nonce: %w", err)
	}

	result := make([]byte, 0, 1+len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	result = append(result, sealVersion)
	result = append(result, nonce...)
	return s.aead.Seal(result, nonce, plaintext, []byte{sealVersion}), nil
}

// unseal reverses seal.
func (s *sealer) unseal(sealed []byte) ([]byte, error) {
	if len(sealed) < 1+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrSealedFrameTooShort
	}
	version := sealed[0]
	if version != sealVersion {
		return nil, fmt.Errorf("%w: %d", ErrSealVersion, version)
	}
	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte{version})
	if err != nil {
		return nil, ErrSealAuthentication
	}
	return plaintext, nil
}
