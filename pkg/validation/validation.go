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

// Package validation checks the identifiers that key material is bound to.
// Tenant and user ids are part of Argon2 salts and tunnel records, so a
// separator or control character inside one could make two distinct
// clients derive the same salt.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds tenant and user ids.
const MaxIdentifierLength = 128

var (
	// identifierPattern matches safe ids. '/' is excluded: it separates the
	// tenant from the email hash in salt identifiers.
	identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.@]+$`)

	// emailHashPattern matches a hex SHA-256 digest.
	emailHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidateIdentifier validates a tenant or user id. kind names the field
// in the returned error.
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}

	// Check for null bytes (can bypass some checks)
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("%s contains null byte", kind)
	}

	// Check length before the pattern (prevent ReDoS)
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%s too long (max %d characters)", kind, MaxIdentifierLength)
	}

	for _, r := range id {
		if r < 32 || r == 127 {
			return fmt.Errorf("%s contains control characters", kind)
		}
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, ., @)", kind)
	}

	return nil
}

// ValidateEmailHash validates a lowercase hex SHA-256 email digest.
func ValidateEmailHash(hash string) error {
	if !emailHashPattern.MatchString(hash) {
		return fmt.Errorf("email hash must be 64 lowercase hex characters")
	}
	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 256 {
		s = s[:256] + "...[truncated]"
	}

	return s
}
