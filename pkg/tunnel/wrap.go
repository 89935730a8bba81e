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

package tunnel

import (
	"fmt"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/aead"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/metrics"
)

// KeyWrapInfo is the HKDF info string for wrapping keys.
const KeyWrapInfo = "go-tunnelkeys/v1/kem-wrap-key"

// WrappedKey is a key encrypted for a KEM public key. The encoding is
// KEMCiphertext || IV || AuthTag || Ciphertext.
type WrappedKey struct {
	KEMCiphertext []byte
	IV            []byte
	AuthTag       []byte
	Ciphertext    []byte
}

// Marshal encodes the wrapped key.
func (w *WrappedKey) Marshal() []byte {
	out := make([]byte, 0, len(w.KEMCiphertext)+len(w.IV)+len(w.AuthTag)+len(w.Ciphertext))
	out = append(out, w.KEMCiphertext...)
	out = append(out, w.IV...)
	out = append(out, w.AuthTag...)
	return append(out, w.Ciphertext...)
}

// ParseWrappedKey decodes a wrapped key produced for scheme.
func ParseWrappedKey(scheme kem.Scheme, data []byte) (*WrappedKey, error) {
	ctSize := scheme.CiphertextSize()
	header := ctSize + aead.IVSize + aead.TagSize
	if len(data) <= header {
		return nil, fmt.Errorf("%w: wrapped key too short", ErrInvalidParameters)
	}
	return &WrappedKey{
		KEMCiphertext: data[:ctSize:ctSize],
		IV:            data[ctSize : ctSize+aead.IVSize : ctSize+aead.IVSize],
		AuthTag:       data[ctSize+aead.IVSize : header : header],
		Ciphertext:    data[header:],
	}, nil
}

// Wrapper encrypts keys to KEM public keys: encapsulate, derive an AES-256
// key from the shared secret with HKDF-SHA256, then seal with KeyWrapAD.
type Wrapper struct {
	scheme kem.Scheme
	cipher aead.Cipher
}

// NewWrapper returns a Wrapper over scheme and cipher.
func NewWrapper(scheme kem.Scheme, cipher aead.Cipher) *Wrapper {
	return &Wrapper{scheme: scheme, cipher: cipher}
}

// Wrap encrypts key for publicKey and returns the encoded WrappedKey.
func (w *Wrapper) Wrap(publicKey, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key cannot be empty", ErrInvalidParameters)
	}
	kemCiphertext, sharedSecret, err := w.scheme.Encapsulate(publicKey)
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveKEM)
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(sharedSecret)

	wrappingKey, err := kdf.HKDFSHA256(sharedSecret, nil, []byte(KeyWrapInfo), aead.KeySize)
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveKDF)
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(wrappingKey)

	sealed, err := w.cipher.Encrypt(key, wrappingKey, []byte(aead.KeyWrapAD))
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveAEAD)
		return nil, ErrCryptoPrimitiveFailure
	}
	wrapped := &WrappedKey{
		KEMCiphertext: kemCiphertext,
		IV:            sealed.IV,
		AuthTag:       sealed.AuthTag,
		Ciphertext:    sealed.Ciphertext,
	}
	return wrapped.Marshal(), nil
}

// Unwrap recovers a key wrapped for the public key matching privateKey.
// A wrong private key surfaces as ErrAuthenticationFailure because ML-KEM
// decapsulation rejects implicitly.
func (w *Wrapper) Unwrap(privateKey, data []byte) ([]byte, error) {
	wrapped, err := ParseWrappedKey(w.scheme, data)
	if err != nil {
		return nil, err
	}
	sharedSecret, err := w.scheme.Decapsulate(privateKey, wrapped.KEMCiphertext)
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveKEM)
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(sharedSecret)

	wrappingKey, err := kdf.HKDFSHA256(sharedSecret, nil, []byte(KeyWrapInfo), aead.KeySize)
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveKDF)
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(wrappingKey)

	key, err := w.cipher.Decrypt(&aead.Sealed{
		Ciphertext: wrapped.Ciphertext,
		IV:         wrapped.IV,
		AuthTag:    wrapped.AuthTag,
	}, wrappingKey, []byte(aead.KeyWrapAD))
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveAEAD)
		return nil, opaque(err)
	}
	return key, nil
}
