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
	"time"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
)

// TunnelKeySize is the tunnel key length, an AES-256 key.
const TunnelKeySize = 32

// ClientTunnel is the server-side record of a client's tunnel. None of its
// fields alone allow recovery of the tunnel key.
type ClientTunnel struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	EmailHash string `json:"emailHash"`

	// ClientPublicKey is the client's KEM public key.
	ClientPublicKey []byte `json:"clientPublicKey"`

	// ServerKeyShare is the server half of the 2-of-2 tunnel key split.
	ServerKeyShare secretsharing.Share `json:"serverKeyShare"`

	// PrivateKeyShare is the server half of the 2-of-2 split of the client's
	// KEM private key. Empty when the client keeps its key elsewhere.
	PrivateKeyShare secretsharing.Share `json:"privateKeyShare"`

	// ClientEncryptedTunnelKey is the tunnel key wrapped for ClientPublicKey.
	ClientEncryptedTunnelKey []byte `json:"clientEncryptedTunnelKey"`

	CreatedAt time.Time `json:"createdAt"`
}

// HasPrivateKeyShare reports whether the client's KEM private key can be
// rebuilt from a PIN.
func (t *ClientTunnel) HasPrivateKeyShare() bool {
	return t.PrivateKeyShare.X != 0 && len(t.PrivateKeyShare.Y) > 0
}

// StaffKeyShare is the tunnel key wrapped for one staff member. Deleting it
// revokes that member's access.
type StaffKeyShare struct {
	TunnelID           string `json:"tunnelId"`
	UserID             string `json:"userId"`
	EncryptedTunnelKey []byte `json:"encryptedTunnelKey"`
}

// StaffRecipient is a staff member authorized for a tunnel.
type StaffRecipient struct {
	UserID    string `json:"userId"`
	PublicKey []byte `json:"publicKey"`
}

// EncryptedAppointment is an appointment payload sealed under a tunnel key.
type EncryptedAppointment struct {
	EncryptedPayload []byte `json:"encryptedPayload"`
	IV               []byte `json:"iv"`
	AuthTag          []byte `json:"authTag"`
}
