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

package aead

import "errors"

var (
	// ErrAuthenticationFailure is returned when the authentication tag does
	// not verify. No plaintext is ever returned alongside it.
	ErrAuthenticationFailure = errors.New("aead: authentication failed")

	// ErrInvalidParameters is returned for a key, IV or tag of the wrong size.
	ErrInvalidParameters = errors.New("aead: invalid parameters")

	// ErrCryptoPrimitiveFailure is returned when the cipher or the random
	// source fails.
	ErrCryptoPrimitiveFailure = errors.New("aead: primitive failure")

	// ErrNonceReuse is returned when an IV is about to be reused with the
	// same key. Nonce reuse under GCM leaks the authentication key, so the
	// encryption is refused.
	ErrNonceReuse = errors.New("aead: nonce reuse detected, encryption rejected")
)
