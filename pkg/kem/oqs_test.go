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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOQSMLKEM768Contract(t *testing.T) {
	exerciseScheme(t, NewOQSMLKEM768())
}

func TestOQSDefaultScheme(t *testing.T) {
	assert.IsType(t, &OQSMLKEM768{}, Default())
}

// Both backends implement FIPS 203, so their encodings interoperate.
func TestOQSInteroperatesWithCircl(t *testing.T) {
	circl := NewMLKEM768()
	oqs := NewOQSMLKEM768()

	pub, priv, err := oqs.GenerateKeyPair()
	require.NoError(t, err)

	ct, ss, err := circl.Encapsulate(pub)
	require.NoError(t, err)

	got, err := oqs.Decapsulate(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, ss, got)
}
