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

// Package tunnel distributes a client's tunnel key so that the client (via
// PIN or its own KEM key) and each authorized staff member can recover it,
// while the server alone never can.
//
// A tunnel key is split 2-of-2: the client half is regenerated from the PIN
// on every login and the server stores only the complementary ServerKeyShare.
// Independently, the key is KEM-wrapped for the client's public key and for
// every staff member's public key. Appointment payloads are sealed under the
// tunnel key with AES-256-GCM.
package tunnel

import (
	"errors"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/aead"
)

var (
	// ErrInvalidParameters is returned for missing or malformed inputs.
	ErrInvalidParameters = errors.New("tunnel: invalid parameters")

	// ErrCryptoPrimitiveFailure is returned when the KEM or AEAD rejects its
	// input. It never carries detail.
	ErrCryptoPrimitiveFailure = errors.New("tunnel: crypto primitive failure")

	// ErrAuthenticationFailure is returned when a wrapped key or an
	// appointment fails authentication.
	ErrAuthenticationFailure = errors.New("tunnel: authentication failure")

	// ErrTunnelNotFound is returned by lookups for an unknown client.
	ErrTunnelNotFound = errors.New("tunnel: not found")

	// ErrTunnelExists is returned when saving a second tunnel for a client.
	ErrTunnelExists = errors.New("tunnel: already exists")

	// ErrStaffShareNotFound is returned for an unknown staff share.
	ErrStaffShareNotFound = errors.New("tunnel: staff share not found")
)

// opaque collapses primitive errors into the two failures callers may see.
func opaque(err error) error {
	if errors.Is(err, aead.ErrAuthenticationFailure) {
		return ErrAuthenticationFailure
	}
	return ErrCryptoPrimitiveFailure
}
