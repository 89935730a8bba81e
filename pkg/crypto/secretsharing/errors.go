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

import "errors"

var (
	// ErrInvalidParameters is returned for an empty secret, an out of range
	// threshold or share count, or a malformed share set.
	ErrInvalidParameters = errors.New("secretsharing: invalid parameters")

	// ErrLengthMismatch is returned when a deterministic client share does
	// not match the secret length.
	ErrLengthMismatch = errors.New("secretsharing: share length does not match secret length")

	// ErrRandomSource is returned when the coefficient source fails.
	ErrRandomSource = errors.New("secretsharing: random source failure")
)
