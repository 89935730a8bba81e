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

package challenge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a challenge does not exist or was
	// already consumed.
	ErrNotFound = errors.New("challenge: not found")

	// ErrExpired is returned when a challenge is past its expiry.
	ErrExpired = errors.New("challenge: expired")

	// ErrAuthenticationFailure is returned when the response does not match.
	ErrAuthenticationFailure = errors.New("challenge: authentication failure")

	// ErrThrottled is matched by every *ThrottledError.
	ErrThrottled = errors.New("challenge: throttled")

	// ErrInvalidParameters is returned for missing or malformed inputs.
	ErrInvalidParameters = errors.New("challenge: invalid parameters")

	// ErrCryptoPrimitiveFailure is returned when the KEM rejects its input.
	ErrCryptoPrimitiveFailure = errors.New("challenge: crypto primitive failure")

	// ErrChallengeExists is returned by a Store asked to store a duplicate id.
	ErrChallengeExists = errors.New("challenge: id already stored")
)

// ThrottledError reports a throttle rejection and the delay the caller must
// observe. It is returned identically whether or not the client exists.
type ThrottledError struct {
	RetryAfter     time.Duration
	FailedAttempts int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("challenge: throttled, retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrThrottled) match.
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// IsVerificationFailure reports whether err is one of the outcomes that
// must be presented to the user identically: not found, expired, or a
// mismatched response.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAuthenticationFailure)
}
