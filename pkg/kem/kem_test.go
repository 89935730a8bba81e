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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMLKEM768Sizes(t *testing.T) {
	s := NewMLKEM768()
	assert.Equal(t, AlgorithmMLKEM768, s.Name())
	assert.Equal(t, 1184, s.PublicKeySize())
	assert.Equal(t, 2400, s.PrivateKeySize())
	assert.Equal(t, 1088, s.CiphertextSize())
	assert.Equal(t, 32, s.SharedSecretSize())
}

func TestMLKEM768Contract(t *testing.T) {
	exerciseScheme(t, NewMLKEM768())
}

func TestDefaultScheme(t *testing.T) {
	s := Default()
	require.NotNil(t, s)
	assert.Equal(t, AlgorithmMLKEM768, s.Name())
}

func TestNew(t *testing.T) {
	s, err := New(AlgorithmMLKEM768)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmMLKEM768, s.Name())

	s, err = New(BackendCircl)
	require.NoError(t, err)
	assert.IsType(t, &MLKEM768{}, s)

	_, err = New("X25519Kyber768")
	assert.ErrorIs(t, err, ErrUnknownScheme)

	assert.Contains(t, Names(), BackendCircl)
	assert.Contains(t, Names(), AlgorithmMLKEM768)
}

// exerciseScheme checks the Scheme contract against any implementation.
func exerciseScheme(t *testing.T, s Scheme) {
	t.Helper()

	pub, priv, err := s.GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, pub, s.PublicKeySize())
	require.Len(t, priv, s.PrivateKeySize())

	t.Run("round trip", func(t *testing.T) {
		ct, ss, err := s.Encapsulate(pub)
		require.NoError(t, err)
		assert.Len(t, ct, s.CiphertextSize())
		assert.Len(t, ss, s.SharedSecretSize())

		got, err := s.Decapsulate(priv, ct)
		require.NoError(t, err)
		assert.Equal(t, ss, got)
	})

	t.Run("fresh secret per encapsulation", func(t *testing.T) {
		ct1, ss1, err := s.Encapsulate(pub)
		require.NoError(t, err)
		ct2, ss2, err := s.Encapsulate(pub)
		require.NoError(t, err)
		assert.NotEqual(t, ct1, ct2)
		assert.NotEqual(t, ss1, ss2)
	})

	t.Run("wrong private key", func(t *testing.T) {
		_, otherPriv, err := s.GenerateKeyPair()
		require.NoError(t, err)
		ct, ss, err := s.Encapsulate(pub)
		require.NoError(t, err)

		// implicit rejection yields an unrelated secret rather than an error
		got, err := s.Decapsulate(otherPriv, ct)
		if err == nil {
			assert.NotEqual(t, ss, got)
		} else {
			assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)
		}
	})

	t.Run("malformed inputs", func(t *testing.T) {
		_, _, err := s.Encapsulate(pub[:10])
		assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)

		_, _, err = s.Encapsulate(nil)
		assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)

		ct, _, err := s.Encapsulate(pub)
		require.NoError(t, err)

		_, err = s.Decapsulate(priv[:len(priv)-1], ct)
		assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)

		_, err = s.Decapsulate(priv, ct[:len(ct)-1])
		assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)
	})
}
