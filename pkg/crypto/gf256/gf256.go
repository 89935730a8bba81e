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

// Package gf256 implements arithmetic in the finite field GF(2^8) using the
// Rijndael reduction polynomial x^8 + x^4 + x^3 + x + 1 (0x11b).
//
// Elements are bytes. Addition and subtraction are XOR. Multiplication is
// carry-less multiply-and-reduce and runs in constant time with respect to
// its operands. Multiplicative inverses come from a table computed once at
// package initialization; the table is never written afterwards, so every
// function in this package is safe for concurrent use.
package gf256

import "errors"

// Polynomial is the Rijndael reduction polynomial.
const Polynomial = 0x11b

var (
	// ErrNoInverse is returned when inverting the zero element.
	ErrNoInverse = errors.New("gf256: zero has no multiplicative inverse")

	// ErrDivisionByZero is returned when dividing by the zero element.
	ErrDivisionByZero = errors.New("gf256: division by zero")
)

// inverses[a] holds a^-1 for a != 0. inverses[0] is unused.
var inverses = buildInverseTable()

// Add returns a + b. Subtraction is the same operation.
func Add(a, b byte) byte {
	return a ^ b
}

// Sub returns a - b, which equals a + b in characteristic 2.
func Sub(a, b byte) byte {
	return a ^ b
}

// Mul returns a * b reduced modulo the Rijndael polynomial.
func Mul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		// mask is 0xff when the low bit of b is set, 0x00 otherwise
		mask := -(b & 1)
		p ^= a & mask
		carry := -(a >> 7)
		a = (a << 1) ^ (0x1b & carry)
		b >>= 1
	}
	return p
}

// Inverse returns the multiplicative inverse of a.
func Inverse(a byte) (byte, error) {
	if a == 0 {
		return 0, ErrNoInverse
	}
	return inverses[a], nil
}

// Div returns a / b.
func Div(a, b byte) (byte, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return Mul(a, inverses[b]), nil
}

// buildInverseTable computes every inverse with the extended Euclidean
// algorithm over GF(2)[x].
func buildInverseTable() [256]byte {
	var table [256]byte
	for a := 1; a < 256; a++ {
		table[a] = euclidInverse(uint32(a))
	}
	return table
}

func euclidInverse(a uint32) byte {
	r0, r1 := uint32(Polynomial), a
	t0, t1 := uint32(0), uint32(1)
	for r1 != 0 {
		q, r := polyDivMod(r0, r1)
		r0, r1 = r1, r
		t0, t1 = t1, t0^clmul(q, t1)
	}
	return byte(t0)
}

// polyDivMod divides polynomial a by b over GF(2).
func polyDivMod(a, b uint32) (q, r uint32) {
	db := degree(b)
	r = a
	for degree(r) >= db {
		shift := degree(r) - db
		q ^= 1 << shift
		r ^= b << shift
	}
	return q, r
}

// clmul is carry-less multiplication without reduction.
func clmul(a, b uint32) uint32 {
	var p uint32
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		a <<= 1
		b >>= 1
	}
	return p
}

// degree returns the degree of polynomial p, or -1 for the zero polynomial.
func degree(p uint32) int {
	d := -1
	for p != 0 {
		p >>= 1
		d++
	}
	return d
}
