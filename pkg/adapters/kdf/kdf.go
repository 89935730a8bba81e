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

// Package kdf derives keys for the tunnel protocol: Argon2id stretches a
// low-entropy PIN into a deterministic share, and HKDF-SHA256 turns a KEM
// shared secret into an AEAD wrapping key.
package kdf

import (
	"crypto/sha256"
	"errors"
)

var (
	// ErrInvalidSalt indicates the salt is too short.
	ErrInvalidSalt = errors.New("kdf: invalid salt")

	// ErrInvalidKeyLength indicates the requested output length is invalid.
	ErrInvalidKeyLength = errors.New("kdf: invalid key length")

	// ErrInvalidMemory indicates the memory cost is below the minimum.
	ErrInvalidMemory = errors.New("kdf: invalid memory cost")

	// ErrInvalidThreads indicates the thread count is invalid.
	ErrInvalidThreads = errors.New("kdf: invalid threads")

	// ErrInvalidTime indicates the time cost is invalid.
	ErrInvalidTime = errors.New("kdf: invalid time cost")

	// ErrInvalidIKM indicates empty input key material.
	ErrInvalidIKM = errors.New("kdf: invalid input key material")
)

// DomainSalt returns SHA-256(purpose || 0x00 || identifier). It binds a
// derivation to both what the key is for and whose it is, so the same PIN
// produces unrelated output for different purposes or clients.
func DomainSalt(purpose, identifier string) []byte {
	h := sha256.New()
	h.Write([]byte(purpose))
	h.Write([]byte{0})
	h.Write([]byte(identifier))
	return h.Sum(nil)
}
