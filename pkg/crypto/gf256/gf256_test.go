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

package gf256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulKnownVectors(t *testing.T) {
	tests := []struct {
		name string
		a, b byte
		want byte
	}{
		{"fips197 example", 0x57, 0x83, 0xc1},
		{"fips197 xtime chain", 0x57, 0x13, 0xfe},
		{"inverse pair", 0x53, 0xca, 0x01},
		{"by zero", 0x9f, 0x00, 0x00},
		{"by one", 0x9f, 0x01, 0x9f},
		{"double", 0x80, 0x02, 0x1b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mul(tt.a, tt.b))
		})
	}
}

func TestAddIsXOR(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b += 7 {
			x, y := byte(a), byte(b)
			assert.Equal(t, x^y, Add(x, y))
			assert.Equal(t, x, Add(Add(x, y), y))
			assert.Equal(t, Add(x, y), Sub(x, y))
		}
	}
}

func TestInverseAllElements(t *testing.T) {
	for a := 1; a < 256; a++ {
		inv, err := Inverse(byte(a))
		require.NoError(t, err)
		assert.Equal(t, byte(1), Mul(byte(a), inv), "a=%#02x", a)
	}
}

func TestInverseZero(t *testing.T) {
	_, err := Inverse(0)
	assert.ErrorIs(t, err, ErrNoInverse)
}

func TestDiv(t *testing.T) {
	_, err := Div(0x10, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)

	for a := 0; a < 256; a += 5 {
		for b := 1; b < 256; b += 3 {
			q, err := Div(byte(a), byte(b))
			require.NoError(t, err)
			assert.Equal(t, byte(a), Mul(q, byte(b)))
		}
	}
}

func TestFieldLaws(t *testing.T) {
	for a := 0; a < 256; a += 3 {
		for b := 0; b < 256; b += 11 {
			for c := 0; c < 256; c += 37 {
				x, y, z := byte(a), byte(b), byte(c)
				assert.Equal(t, Mul(x, y), Mul(y, x))
				assert.Equal(t, Mul(Mul(x, y), z), Mul(x, Mul(y, z)))
				assert.Equal(t, Add(Mul(x, y), Mul(x, z)), Mul(x, Add(y, z)))
			}
		}
	}
}

func TestInverseTableConcurrentReads(t *testing.T) {
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for a := 1; a < 256; a++ {
				inv, _ := Inverse(byte(a))
				if Mul(byte(a), inv) != 1 {
					t.Errorf("bad inverse for %#02x", a)
				}
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}

func BenchmarkMul(b *testing.B) {
	var acc byte
	for i := 0; i < b.N; i++ {
		acc ^= Mul(byte(i), byte(i>>8))
	}
	_ = acc
}
