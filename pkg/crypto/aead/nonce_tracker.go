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

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// NonceTracker records the IVs used under each key and refuses a repeat.
//
// Random 16-byte IVs make a collision astronomically unlikely; the tracker
// guards against a broken or substituted random source. Keys are identified
// by a truncated SHA-256 fingerprint and never stored.
//
// The registry lives in memory and grows with every encryption. Use it for
// long-lived keys with bounded traffic, or call Forget when a key retires.
//
// Thread-safe.
type NonceTracker struct {
	enabled bool
	nonces  map[string]map[string]struct{} // key fingerprint -> set of hex IVs
	mu      sync.RWMutex
}

// NewNonceTracker creates a tracker. A disabled tracker accepts everything.
func NewNonceTracker(enabled bool) *NonceTracker {
	return &NonceTracker{
		enabled: enabled,
		nonces:  make(map[string]map[string]struct{}),
	}
}

// CheckAndRecordNonce records nonce for key, or returns ErrNonceReuse if it
// was already used with that key. The check and the record are atomic.
func (nt *NonceTracker) CheckAndRecordNonce(key, nonce []byte) error {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if !nt.enabled {
		return nil
	}

	fp := fingerprint(key)
	used, ok := nt.nonces[fp]
	if !ok {
		used = make(map[string]struct{})
		nt.nonces[fp] = used
	}
	nonceHex := hex.EncodeToString(nonce)
	if _, exists := used[nonceHex]; exists {
		return ErrNonceReuse
	}
	used[nonceHex] = struct{}{}
	return nil
}

// Contains reports whether nonce has been recorded for key.
func (nt *NonceTracker) Contains(key, nonce []byte) bool {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	if !nt.enabled {
		return false
	}
	_, exists := nt.nonces[fingerprint(key)][hex.EncodeToString(nonce)]
	return exists
}

// Count returns the number of IVs recorded for key.
func (nt *NonceTracker) Count(key []byte) int {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return len(nt.nonces[fingerprint(key)])
}

// Forget drops every IV recorded for key.
func (nt *NonceTracker) Forget(key []byte) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	delete(nt.nonces, fingerprint(key))
}

// Clear drops all recorded IVs.
func (nt *NonceTracker) Clear() {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.nonces = make(map[string]map[string]struct{})
}

// IsEnabled reports whether tracking is active.
func (nt *NonceTracker) IsEnabled() bool {
	nt.mu.RLock()
	defer nt.mu.RUnlock()
	return nt.enabled
}

// SetEnabled turns tracking on or off. Recorded IVs are kept.
func (nt *NonceTracker) SetEnabled(enabled bool) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.enabled = enabled
}

func fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:16])
}
