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
	"bytes"
	"context"
	"sort"
	"sync"
)

// Registry persists tunnels and staff shares. Save must write the tunnel and
// all of its staff shares atomically.
type Registry interface {
	Save(ctx context.Context, result *CreateResult) error
	LookupTunnel(ctx context.Context, tenantID, emailHash string) (*ClientTunnel, error)
	PutStaffShare(ctx context.Context, share *StaffKeyShare) error
	StaffShare(ctx context.Context, tunnelID, userID string) (*StaffKeyShare, error)
	RevokeStaff(ctx context.Context, tunnelID, userID string) error
}

// MemoryRegistry is an in-memory implementation of Registry.
// This is intended for development and testing only.
type MemoryRegistry struct {
	mu      sync.RWMutex
	tunnels map[string]*ClientTunnel            // tenantID/emailHash -> tunnel
	staff   map[string]map[string]StaffKeyShare // tunnel id -> user id -> share
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		tunnels: make(map[string]*ClientTunnel),
		staff:   make(map[string]map[string]StaffKeyShare),
	}
}

// Save stores a newly created tunnel with its staff shares.
func (r *MemoryRegistry) Save(ctx context.Context, result *CreateResult) error {
	if result == nil || result.Tunnel == nil {
		return ErrInvalidParameters
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ClientIdentifier(result.Tunnel.TenantID, result.Tunnel.EmailHash)
	if _, ok := r.tunnels[key]; ok {
		return ErrTunnelExists
	}
	for _, share := range result.StaffShares {
		if share.TunnelID != result.Tunnel.ID {
			return ErrInvalidParameters
		}
	}

	copied := cloneTunnel(result.Tunnel)
	r.tunnels[key] = copied
	shares := make(map[string]StaffKeyShare, len(result.StaffShares))
	for _, share := range result.StaffShares {
		shares[share.UserID] = cloneStaffShare(&share)
	}
	r.staff[copied.ID] = shares
	return nil
}

// LookupTunnel returns the tunnel for a client, or ErrTunnelNotFound.
func (r *MemoryRegistry) LookupTunnel(ctx context.Context, tenantID, emailHash string) (*ClientTunnel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tunnels[ClientIdentifier(tenantID, emailHash)]
	if !ok {
		return nil, ErrTunnelNotFound
	}
	return cloneTunnel(t), nil
}

// PutStaffShare adds or replaces a staff member's share.
func (r *MemoryRegistry) PutStaffShare(ctx context.Context, share *StaffKeyShare) error {
	if share == nil {
		return ErrInvalidParameters
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	shares, ok := r.staff[share.TunnelID]
	if !ok {
		return ErrTunnelNotFound
	}
	shares[share.UserID] = cloneStaffShare(share)
	return nil
}

// StaffShare returns a staff member's share, or ErrStaffShareNotFound.
func (r *MemoryRegistry) StaffShare(ctx context.Context, tunnelID, userID string) (*StaffKeyShare, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	share, ok := r.staff[tunnelID][userID]
	if !ok {
		return nil, ErrStaffShareNotFound
	}
	copied := cloneStaffShare(&share)
	return &copied, nil
}

// RevokeStaff deletes a staff member's share. The tunnel key is not rotated.
func (r *MemoryRegistry) RevokeStaff(ctx context.Context, tunnelID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	shares, ok := r.staff[tunnelID]
	if !ok {
		return ErrTunnelNotFound
	}
	if _, ok := shares[userID]; !ok {
		return ErrStaffShareNotFound
	}
	delete(shares, userID)
	return nil
}

// StaffUsers lists the user ids holding a share of the tunnel, sorted.
func (r *MemoryRegistry) StaffUsers(tunnelID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.staff[tunnelID]))
	for id := range r.staff[tunnelID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Count returns the number of tunnels stored.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tunnels)
}

// cloneTunnel copies t so that the registry and its callers never share
// key material.
func cloneTunnel(t *ClientTunnel) *ClientTunnel {
	copied := *t
	copied.ClientPublicKey = bytes.Clone(t.ClientPublicKey)
	copied.ServerKeyShare = t.ServerKeyShare.Clone()
	copied.PrivateKeyShare = t.PrivateKeyShare.Clone()
	copied.ClientEncryptedTunnelKey = bytes.Clone(t.ClientEncryptedTunnelKey)
	return &copied
}

func cloneStaffShare(s *StaffKeyShare) StaffKeyShare {
	copied := *s
	copied.EncryptedTunnelKey = bytes.Clone(s.EncryptedTunnelKey)
	return copied
}
