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

package challenge

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
)

// Respond is the client side of the protocol. It rebuilds the KEM private
// key from the server-held share and the PIN-derived half, then unmasks
// the challenge. The returned value is what Verify expects.
func Respond(scheme kem.Scheme, challengeHex, privateKeyShareHex string, clientShareY []byte) ([]byte, error) {
	share, err := secretsharing.DecodeHex(privateKeyShareHex)
	if err != nil {
		return nil, fmt.Errorf("%w: private key share", ErrInvalidParameters)
	}
	privateKey, err := tunnel.RecoverSecret(share, clientShareY)
	if err != nil {
		return nil, fmt.Errorf("%w: private key share", ErrInvalidParameters)
	}
	defer clear(privateKey)

	return RespondWithPrivateKey(scheme, challengeHex, privateKey)
}

// RespondWithPrivateKey unmasks a challenge for a client that holds its KEM
// private key directly.
func RespondWithPrivateKey(scheme kem.Scheme, challengeHex string, privateKey []byte) ([]byte, error) {
	blob, err := hex.DecodeString(challengeHex)
	if err != nil || len(blob) != scheme.CiphertextSize()+ValueSize {
		return nil, fmt.Errorf("%w: malformed challenge", ErrInvalidParameters)
	}
	ciphertext, masked := blob[:scheme.CiphertextSize()], blob[scheme.CiphertextSize():]

	sharedSecret, err := scheme.Decapsulate(privateKey, ciphertext)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(sharedSecret)
	if len(sharedSecret) < ValueSize {
		return nil, ErrCryptoPrimitiveFailure
	}

	value := make([]byte, ValueSize)
	subtle.XORBytes(value, masked, sharedSecret[:ValueSize])
	return value, nil
}
