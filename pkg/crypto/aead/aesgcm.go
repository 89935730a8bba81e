// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tunnelkeys.
//
// go-tunnelkeys is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package aead provides AES-256-GCM authenticated encryption with a 16-byte
// IV and a detached 16-byte authentication tag.
//
// Every encryption draws a fresh random IV. Associated data is one of the
// fixed protocol constants below, binding a ciphertext to this application
// and to its purpose so it cannot be replayed as a valid ciphertext in
// another context.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

const (
	// KeySize is the AES-256 key size.
	KeySize = 32

	// IVSize is the GCM nonce size used by this package.
	IVSize = 16

	// TagSize is the GCM authentication tag size.
	TagSize = 16
)

// Associated data constants.
const (
	// AppointmentAD authenticates appointment payloads sealed under a tunnel key.
	AppointmentAD = "go-tunnelkeys/v1/appointment"

	// KeyWrapAD authenticates tunnel keys wrapped for a KEM recipient.
	KeyWrapAD = "go-tunnelkeys/v1/tunnel-key-wrap"
)

// Sealed is the output of an encryption: ciphertext, IV and tag are kept as
// separate fields, matching how they are persisted.
type Sealed struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
	AuthTag    []byte `json:"authTag"`
}

// Cipher encrypts and decrypts with associated data.
type Cipher interface {
	Encrypt(plaintext, key, associatedData []byte) (*Sealed, error)
	Decrypt(sealed *Sealed, key, associatedData []byte) ([]byte, error)
}

// Options configures an AESGCM cipher.
type Options struct {
	// Random is the IV source. Defaults to crypto/rand.
	Random io.Reader

	// NonceTracker, when set, rejects a repeated IV for the same key.
	NonceTracker *NonceTracker
}

// AESGCM is AES-256-GCM with 16-byte IVs.
type AESGCM struct {
	random  io.Reader
	tracker *NonceTracker
}

// NewAESGCM returns an AES-256-GCM cipher. opts may be nil.
func NewAESGCM(opts *Options) *AESGCM {
	if opts == nil {
		opts = &Options{}
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	return &AESGCM{random: random, tracker: opts.NonceTracker}
}

// Encrypt seals plaintext under key with a fresh random IV.
func (c *AESGCM) Encrypt(plaintext, key, associatedData []byte) (*Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	if c.tracker != nil {
		if err := c.tracker.CheckAndRecordNonce(key, iv); err != nil {
			return nil, err
		}
	}

	out := gcm.Seal(nil, iv, plaintext, associatedData)
	split := len(out) - TagSize
	return &Sealed{
		Ciphertext: out[:split:split],
		IV:         iv,
		AuthTag:    out[split:],
	}, nil
}

// Decrypt opens sealed under key. Any tag mismatch, including one caused by
// a modified IV or ciphertext, yields ErrAuthenticationFailure.
func (c *AESGCM) Decrypt(sealed *Sealed, key, associatedData []byte) ([]byte, error) {
	if sealed == nil || len(sealed.IV) != IVSize || len(sealed.AuthTag) != TagSize {
		return nil, ErrInvalidParameters
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	combined := make([]byte, 0, len(sealed.Ciphertext)+TagSize)
	combined = append(combined, sealed.Ciphertext...)
	combined = append(combined, sealed.AuthTag...)

	plaintext, err := gcm.Open(nil, sealed.IV, combined, associatedData)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidParameters
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	return gcm, nil
}
