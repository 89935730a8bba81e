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

//go:build quantum

package kem

import (
	"sync"

	"github.com/open-quantum-safe/liboqs-go/oqs"
)

// BackendLibOQS is the registry name of the liboqs implementation.
const BackendLibOQS = AlgorithmMLKEM768 + "/liboqs"

func init() {
	Register(BackendLibOQS, func() Scheme { return NewOQSMLKEM768() })
}

// OQSMLKEM768 is ML-KEM-768 implemented by liboqs. Every operation uses a
// short-lived oqs.KeyEncapsulation that is cleaned before returning, so the
// value is safe for concurrent use.
type OQSMLKEM768 struct {
	once    sync.Once
	details oqs.KeyEncapsulationDetails
}

// NewOQSMLKEM768 returns the liboqs ML-KEM-768 scheme.
func NewOQSMLKEM768() *OQSMLKEM768 {
	return &OQSMLKEM768{}
}

func (o *OQSMLKEM768) Name() string {
	return AlgorithmMLKEM768
}

func (o *OQSMLKEM768) GenerateKeyPair() ([]byte, []byte, error) {
	k := oqs.KeyEncapsulation{}
	defer k.Clean()
	if err := k.Init(AlgorithmMLKEM768, nil); err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	publicKey, err := k.GenerateKeyPair()
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	return publicKey, k.ExportSecretKey(), nil
}

func (o *OQSMLKEM768) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != o.PublicKeySize() {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	k := oqs.KeyEncapsulation{}
	defer k.Clean()
	if err := k.Init(AlgorithmMLKEM768, nil); err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	ciphertext, sharedSecret, err := k.EncapSecret(publicKey)
	if err != nil {
		return nil, nil, ErrCryptoPrimitiveFailure
	}
	return ciphertext, sharedSecret, nil
}

func (o *OQSMLKEM768) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != o.PrivateKeySize() || len(ciphertext) != o.CiphertextSize() {
		return nil, ErrCryptoPrimitiveFailure
	}
	k := oqs.KeyEncapsulation{}
	defer k.Clean()
	if err := k.Init(AlgorithmMLKEM768, privateKey); err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	sharedSecret, err := k.DecapSecret(ciphertext)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	return sharedSecret, nil
}

func (o *OQSMLKEM768) loadDetails() oqs.KeyEncapsulationDetails {
	o.once.Do(func() {
		k := oqs.KeyEncapsulation{}
		defer k.Clean()
		if err := k.Init(AlgorithmMLKEM768, nil); err == nil {
			o.details = k.Details()
		}
	})
	return o.details
}

func (o *OQSMLKEM768) PublicKeySize() int {
	return o.loadDetails().LengthPublicKey
}

func (o *OQSMLKEM768) PrivateKeySize() int {
	return o.loadDetails().LengthSecretKey
}

func (o *OQSMLKEM768) CiphertextSize() int {
	return o.loadDetails().LengthCiphertext
}

func (o *OQSMLKEM768) SharedSecretSize() int {
	return o.loadDetails().LengthSharedSecret
}
