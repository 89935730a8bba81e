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

package tunnel

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/kdf"
)

// Derivation purposes for PIN shares.
const (
	PurposeTunnelKey  = "tunnel-key-share"
	PurposePrivateKey = "kem-private-key-share"
)

// EmailHash returns the hex SHA-256 of the normalized address. Tunnels are
// keyed by this hash so the server never needs the address itself.
func EmailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// ClientIdentifier scopes PIN derivations to one client of one tenant.
func ClientIdentifier(tenantID, emailHash string) string {
	return tenantID + "/" + emailHash
}

// DerivePINShare stretches pin into a length-byte client share with
// Argon2id, salted by purpose and identifier.
func DerivePINShare(pin []byte, identifier, purpose string, length int, params *kdf.Argon2Params) ([]byte, error) {
	if len(pin) == 0 || identifier == "" || purpose == "" {
		return nil, fmt.Errorf("%w: pin, identifier and purpose are required", ErrInvalidParameters)
	}
	share, err := kdf.Argon2id(pin, kdf.DomainSalt(purpose, identifier), length, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return share, nil
}

// OnboardRequest holds the client-side inputs for Onboard.
type OnboardRequest struct {
	TenantID string
	Email    string
	PIN      []byte
	Staff    []StaffRecipient

	// Argon2 defaults to kdf.DefaultArgon2Params
	Argon2 *kdf.Argon2Params
}

// OnboardResult is the outcome of Onboard. TunnelKey is returned for
// sealing the first appointment; the caller must wipe it.
type OnboardResult struct {
	*CreateResult
	TunnelKey []byte
}

// Onboard registers a new client end to end: it generates the client KEM
// key pair and tunnel key, derives both PIN shares and calls Create. The
// client private key is split against the PIN and then discarded.
func (d *Distributor) Onboard(ctx context.Context, req *OnboardRequest) (*OnboardResult, error) {
	if req == nil || req.TenantID == "" || req.Email == "" || len(req.PIN) == 0 {
		return nil, fmt.Errorf("%w: tenant id, email and pin are required", ErrInvalidParameters)
	}
	emailHash := EmailHash(req.Email)
	identifier := ClientIdentifier(req.TenantID, emailHash)

	publicKey, privateKey, err := d.scheme.GenerateKeyPair()
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(privateKey)

	tunnelKey, err := d.NewTunnelKey()
	if err != nil {
		return nil, err
	}

	clientShare, err := DerivePINShare(req.PIN, identifier, PurposeTunnelKey, len(tunnelKey), req.Argon2)
	if err != nil {
		clear(tunnelKey)
		return nil, err
	}
	defer clear(clientShare)

	privateShare, err := DerivePINShare(req.PIN, identifier, PurposePrivateKey, len(privateKey), req.Argon2)
	if err != nil {
		clear(tunnelKey)
		return nil, err
	}
	defer clear(privateShare)

	result, err := d.Create(ctx, &CreateRequest{
		TenantID:         req.TenantID,
		EmailHash:        emailHash,
		TunnelKey:        tunnelKey,
		ClientPublicKey:  publicKey,
		ClientShareY:     clientShare,
		ClientPrivateKey: privateKey,
		PrivateKeyShareY: privateShare,
		Staff:            req.Staff,
	})
	if err != nil {
		clear(tunnelKey)
		return nil, err
	}
	return &OnboardResult{CreateResult: result, TunnelKey: tunnelKey}, nil
}

// UnlockWithPIN recovers the tunnel key and the client's KEM private key
// from a PIN and the server-held shares of tunnel. When the tunnel carries a
// private key share, the recovered private key must open the client's
// wrapped copy of the tunnel key and the two must agree; a wrong PIN fails
// that check with ErrAuthenticationFailure.
func (d *Distributor) UnlockWithPIN(tunnel *ClientTunnel, pin []byte, params *kdf.Argon2Params) (tunnelKey, privateKey []byte, err error) {
	if tunnel == nil {
		return nil, nil, fmt.Errorf("%w: tunnel is nil", ErrInvalidParameters)
	}
	identifier := ClientIdentifier(tunnel.TenantID, tunnel.EmailHash)

	clientShare, err := DerivePINShare(pin, identifier, PurposeTunnelKey, len(tunnel.ServerKeyShare.Y), params)
	if err != nil {
		return nil, nil, err
	}
	defer clear(clientShare)
	tunnelKey, err = RecoverSecret(tunnel.ServerKeyShare, clientShare)
	if err != nil {
		return nil, nil, err
	}

	if !tunnel.HasPrivateKeyShare() {
		return tunnelKey, nil, nil
	}
	privateShare, err := DerivePINShare(pin, identifier, PurposePrivateKey, len(tunnel.PrivateKeyShare.Y), params)
	if err != nil {
		clear(tunnelKey)
		return nil, nil, err
	}
	defer clear(privateShare)
	privateKey, err = RecoverSecret(tunnel.PrivateKeyShare, privateShare)
	if err != nil {
		clear(tunnelKey)
		return nil, nil, err
	}

	wrapped, err := d.OpenClientKey(privateKey, tunnel)
	if err != nil || subtle.ConstantTimeCompare(wrapped, tunnelKey) != 1 {
		clear(tunnelKey)
		clear(privateKey)
		clear(wrapped)
		return nil, nil, ErrAuthenticationFailure
	}
	clear(wrapped)
	return tunnelKey, privateKey, nil
}
