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

// Package kem adapts post-quantum key encapsulation mechanisms to a single
// byte-oriented capability interface.
//
// Keys, ciphertexts and shared secrets are opaque byte slices of fixed,
// algorithm-defined length. One implementation is compiled per deployment
// target: the pure Go ML-KEM-768 from cloudflare/circl by default, or the
// liboqs binding when built with the quantum tag. Callers obtain it through
// Default or New and never branch on the backend at call time.
package kem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const (
	// AlgorithmMLKEM768 is the FIPS 203 name of the scheme.
	AlgorithmMLKEM768 = "ML-KEM-768"
)

var (
	// ErrCryptoPrimitiveFailure is returned for every rejection from the
	// underlying primitive. It deliberately carries no detail.
	ErrCryptoPrimitiveFailure = errors.New("kem: primitive failure")

	// ErrUnknownScheme is returned by New for an unregistered name.
	ErrUnknownScheme = errors.New("kem: unknown scheme")
)

// Scheme is a key encapsulation mechanism.
type Scheme interface {
	// Name returns the algorithm name, e.g. "ML-KEM-768".
	Name() string

	// GenerateKeyPair returns a fresh encoded key pair.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Encapsulate derives a shared secret for publicKey and returns it with
	// the ciphertext that transports it.
	Encapsulate(publicKey []byte) (ciphertext, sharedSecret []byte, err error)

	// Decapsulate recovers the shared secret from ciphertext.
	Decapsulate(privateKey, ciphertext []byte) (sharedSecret []byte, err error)

	PublicKeySize() int
	PrivateKeySize() int
	CiphertextSize() int
	SharedSecretSize() int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Scheme)
)

// Register makes a scheme constructor available to New under name.
// Registering the same name twice replaces the earlier constructor.
func Register(name string, factory func() Scheme) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New returns the scheme registered under name. The plain algorithm name
// resolves to Default.
func New(name string) (Scheme, error) {
	if name == "" || name == AlgorithmMLKEM768 {
		return Default(), nil
	}
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, name)
	}
	return factory(), nil
}

// Names lists the registered scheme names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry)+1)
	names = append(names, AlgorithmMLKEM768)
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
