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

package secretsharing

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/gf256"
)

// MaxShares is the largest number of shares a secret can be split into.
const MaxShares = 255

// Splitter splits secrets using coefficients read from a random source.
type Splitter struct {
	random io.Reader
}

// NewSplitter returns a Splitter reading coefficients from random. A nil
// reader selects crypto/rand.
func NewSplitter(random io.Reader) *Splitter {
	if random == nil {
		random = rand.Reader
	}
	return &Splitter{random: random}
}

var defaultSplitter = NewSplitter(nil)

// Split divides secret into total shares, any threshold of which
// reconstruct it. Coefficients come from crypto/rand.
func Split(secret []byte, threshold, total int) ([]Share, error) {
	return defaultSplitter.Split(secret, threshold, total)
}

// Split divides secret into total shares, any threshold of which
// reconstruct it.
func (s *Splitter) Split(secret []byte, threshold, total int) ([]Share, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret cannot be empty", ErrInvalidParameters)
	}
	if threshold < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2, got %d", ErrInvalidParameters, threshold)
	}
	if total < threshold {
		return nil, fmt.Errorf("%w: total shares (%d) must be >= threshold (%d)", ErrInvalidParameters, total, threshold)
	}
	if total > MaxShares {
		return nil, fmt.Errorf("%w: total shares must be <= %d, got %d", ErrInvalidParameters, MaxShares, total)
	}

	degree := threshold - 1

	// coefficients[b*degree : (b+1)*degree] are a1..a(k-1) for secret byte b
	coefficients := make([]byte, len(secret)*degree)
	defer clear(coefficients)
	if _, err := io.ReadFull(s.random, coefficients); err != nil {
		return nil, ErrRandomSource
	}

	shares := make([]Share, total)
	for i := range shares {
		x := byte(i + 1)
		y := make([]byte, len(secret))
		for b, constant := range secret {
			y[b] = evaluate(constant, coefficients[b*degree:(b+1)*degree], x)
		}
		shares[i] = Share{X: x, Y: y}
	}
	return shares, nil
}

// SplitDeterministic computes the server share of a 2-of-2 split in which
// the client share at ClientX is fixed to clientShareY. The result is the
// share at ServerX.
func SplitDeterministic(secret, clientShareY []byte) (Share, error) {
	if len(secret) == 0 {
		return Share{}, fmt.Errorf("%w: secret cannot be empty", ErrInvalidParameters)
	}
	if len(clientShareY) != len(secret) {
		return Share{}, ErrLengthMismatch
	}

	serverY := make([]byte, len(secret))
	for b := range secret {
		a1 := gf256.Sub(clientShareY[b], secret[b])
		serverY[b] = gf256.Add(secret[b], gf256.Mul(ServerX, a1))
	}
	return Share{X: ServerX, Y: serverY}, nil
}

// Combine reconstructs a secret from two or more shares by Lagrange
// interpolation at x = 0. Supplying fewer shares than the split threshold
// produces an unrelated value, not an error.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: at least 2 shares required, got %d", ErrInvalidParameters, len(shares))
	}

	size := len(shares[0].Y)
	if size == 0 {
		return nil, fmt.Errorf("%w: share 0 is empty", ErrInvalidParameters)
	}
	seen := make(map[byte]struct{}, len(shares))
	for i, share := range shares {
		if share.X == 0 {
			return nil, fmt.Errorf("%w: share %d has x = 0", ErrInvalidParameters, i)
		}
		if _, dup := seen[share.X]; dup {
			return nil, fmt.Errorf("%w: duplicate share x = %d", ErrInvalidParameters, share.X)
		}
		seen[share.X] = struct{}{}
		if len(share.Y) != size {
			return nil, fmt.Errorf("%w: share %d length %d, expected %d", ErrInvalidParameters, i, len(share.Y), size)
		}
	}

	basis, err := lagrangeBasisAtZero(shares)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, size)
	for i, share := range shares {
		for b, y := range share.Y {
			secret[b] = gf256.Add(secret[b], gf256.Mul(y, basis[i]))
		}
	}
	return secret, nil
}

// evaluate computes constant + a1*x + ... + ad*x^d using Horner's method.
func evaluate(constant byte, coefficients []byte, x byte) byte {
	var result byte
	for d := len(coefficients) - 1; d >= 0; d-- {
		result = gf256.Add(gf256.Mul(result, x), coefficients[d])
	}
	return gf256.Add(gf256.Mul(result, x), constant)
}

// lagrangeBasisAtZero returns L_i(0) = prod_{j != i} x_j / (x_i - x_j) for
// every share. The x coordinates must already be distinct and non-zero.
func lagrangeBasisAtZero(shares []Share) ([]byte, error) {
	basis := make([]byte, len(shares))
	for i := range shares {
		l := byte(1)
		for j := range shares {
			if i == j {
				continue
			}
			term, err := gf256.Div(shares[j].X, gf256.Sub(shares[i].X, shares[j].X))
			if err != nil {
				return nil, err
			}
			l = gf256.Mul(l, term)
		}
		basis[i] = l
	}
	return basis, nil
}
