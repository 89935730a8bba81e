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

package kdf

import (
	"golang.org/x/crypto/argon2"
)

const (
	// MinArgon2SaltLength is the minimum salt length in bytes
	MinArgon2SaltLength = 16

	// MinArgon2Memory is the minimum memory cost in KiB
	MinArgon2Memory = 8 * 1024 // 8 MiB

	// MinArgon2Time is the minimum time cost
	MinArgon2Time = 1

	// MinArgon2Threads is the minimum number of threads
	MinArgon2Threads = 1
)

// Argon2Params are the Argon2id cost parameters.
type Argon2Params struct {
	// Time is the number of passes over memory
	Time uint32 `yaml:"time" json:"time"`

	// MemoryKiB is the memory cost in KiB
	MemoryKiB uint32 `yaml:"memory_kib" json:"memory_kib"`

	// Threads is the degree of parallelism
	Threads uint8 `yaml:"threads" json:"threads"`
}

// DefaultArgon2Params returns the production cost parameters.
func DefaultArgon2Params() *Argon2Params {
	return &Argon2Params{
		Time:      3,
		MemoryKiB: 64 * 1024, // 64 MiB
		Threads:   4,
	}
}

// Validate checks the parameters against the minimums.
func (p *Argon2Params) Validate() error {
	if p.MemoryKiB < MinArgon2Memory {
		return ErrInvalidMemory
	}
	if p.Time < MinArgon2Time {
		return ErrInvalidTime
	}
	if p.Threads < MinArgon2Threads {
		return ErrInvalidThreads
	}
	return nil
}

// Argon2id derives length bytes from secret and salt. A nil params selects
// DefaultArgon2Params.
func Argon2id(secret, salt []byte, length int, params *Argon2Params) ([]byte, error) {
	if params == nil {
		params = DefaultArgon2Params()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrInvalidIKM
	}
	if len(salt) < MinArgon2SaltLength {
		return nil, ErrInvalidSalt
	}
	if length <= 0 {
		return nil, ErrInvalidKeyLength
	}
	return argon2.IDKey(secret, salt, params.Time, params.MemoryKiB, params.Threads, uint32(length)), nil
}
