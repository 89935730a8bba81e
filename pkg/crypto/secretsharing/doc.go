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

// Package secretsharing implements Shamir's Secret Sharing over GF(2^8).
//
// A secret is split byte by byte. For each byte a polynomial of degree
// threshold-1 is built whose constant term is the secret byte and whose
// other coefficients are drawn from a cryptographically secure source. The
// polynomial is evaluated at x = 1..total to produce the shares, and any
// threshold of them recover the secret through Lagrange interpolation at
// x = 0. Fewer shares than the threshold interpolate to a value that is
// uniformly distributed and carries no information about the secret.
//
// # Deterministic 2-of-2
//
// SplitDeterministic is the constrained k=2, n=2 form used for PIN-based
// recovery. The caller fixes the share at x=1 (derived from a PIN and an
// identifier) and receives the complementary share at x=2:
//
//	a1          = clientShareY XOR secret
//	serverShare = secret XOR 2*a1
//
// The client regenerates its half on every login while the server stores
// only the other half. Reconstruction is the ordinary two-point Combine.
//
// # Usage Example
//
//	shares, err := secretsharing.Split([]byte("tunnel key"), 3, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	secret, err := secretsharing.Combine(shares[1:4])
//
// # Constraints
//
//   - 2 <= threshold <= total <= 255
//   - Share x coordinates are 1..255, x = 0 is the secret itself
//   - Combine does not know the original threshold; supplying fewer
//     points yields an unrelated value rather than an error
package secretsharing
