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

package kem

import (
	circlkem "github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// BackendCircl is the registry name of the pure Go implementation.
const BackendCircl = AlgorithmMLKEM768 + "/circl"

func init() {
	Register(BackendCircl, func() Scheme { return NewMLKEM768() })
}

// MLKEM768 is ML-KEM-768 implemented by cloudflare/circl.
type MLKEM768 struct {
	scheme circlkem.Scheme
}

// NewMLKEM768 returns the circl ML-KEM-768 scheme.
func NewMLKEM768() *MLKEM768 {
	return &MLKEM768{scheme: mlkem768.Scheme()}
}

func (m *MLKEM768) Name() string {
	return AlgorithmMLKEM768
}

func (m *MLKEM768) GenerateKeyPair() ([]byte, []byte, error) {
	pk, sk, err := m.scheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	publicKey, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	privateKey, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	return publicKey, privateKey, nil
}

func (m *MLKEM768) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != m.scheme.PublicKeySize() {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	pk, err := m.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	ciphertext, sharedSecret, err := m.scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	return ciphertext, sharedSecret, nil
}

func (m *MLKEM768) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != m.scheme.PrivateKeySize() || len(ciphertext) != m.scheme.CiphertextSize() {
		return nil, ErrCryptoPrimitiveFailure
	}
	sk, err := m.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	sharedSecret, err := m.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	return sharedSecret, nil
}

func (m *MLKEM768) PublicKeySize() int {
	return m.scheme.PublicKeySize()
}

func (m *MLKEM768) PrivateKeySize() int {
	return m.scheme.PrivateKeySize()
}

func (m *MLKEM768) CiphertextSize() int {
	return m.scheme.CiphertextSize()
}

func (m *MLKEM768) SharedSecretSize() int {
	return m.scheme.SharedKeySize()
}
