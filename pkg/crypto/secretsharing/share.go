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
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	// ClientX is the x coordinate of the client-held share in the
	// deterministic 2-of-2 scheme.
	ClientX byte = 1

	// ServerX is the x coordinate of the server-held share in the
	// deterministic 2-of-2 scheme.
	ServerX byte = 2
)

// Share is a single point (X, Y) on the per-byte sharing polynomials.
// Y holds one evaluation per secret byte.
type Share struct {
	X byte   `json:"x"`
	Y []byte `json:"y"`
}

// ClientShare returns the share at ClientX with the given y values.
func ClientShare(y []byte) Share {
	return Share{X: ClientX, Y: y}
}

// MarshalBinary encodes the share as X || Y.
func (s Share) MarshalBinary() ([]byte, error) {
	if s.X == 0 || len(s.Y) == 0 {
		return nil, fmt.Errorf("%w: share must have non-zero x and non-empty y", ErrInvalidParameters)
	}
	out := make([]byte, 1+len(s.Y))
	out[0] = s.X
	copy(out[1:], s.Y)
	return out, nil
}

// UnmarshalBinary decodes a share produced by MarshalBinary.
func (s *Share) UnmarshalBinary(data []byte) error {
	if len(data) < 2 || data[0] == 0 {
		return fmt.Errorf("%w: malformed share encoding", ErrInvalidParameters)
	}
	s.X = data[0]
	s.Y = append([]byte(nil), data[1:]...)
	return nil
}

// EncodeHex returns the hex form of the binary encoding, used in API payloads.
func (s Share) EncodeHex() (string, error) {
	b, err := s.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DecodeHex parses a share from its hex form.
func DecodeHex(encoded string) (Share, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return Share{}, fmt.Errorf("%w: share is not valid hex", ErrInvalidParameters)
	}
	var s Share
	if err := s.UnmarshalBinary(raw); err != nil {
		return Share{}, err
	}
	return s, nil
}

// Clone returns a copy of the share that does not alias s.Y.
func (s Share) Clone() Share {
	return Share{X: s.X, Y: bytes.Clone(s.Y)}
}

// Wipe zeroes the share's y values in place.
func (s *Share) Wipe() {
	clear(s.Y)
}
