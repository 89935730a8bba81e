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
	"context"
	"sync"
	"time"
)

// Challenge is a stored, single-use challenge.
type Challenge struct {
	ID        string
	Value     []byte
	EmailHash string
	TenantID  string
	ExpiresAt time.Time
}

// Store persists issued challenges. Implementations must copy Value rather
// than retain the caller's slice. Invalidate must be atomic: of two
// concurrent calls for the same id exactly one succeeds and the other
// returns ErrNotFound.
type Store interface {
	Store(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, id string) (*Challenge, error)
	Invalidate(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of Store.
// This is intended for development, testing and single-node deployments.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]*Challenge)}
}

// Store saves c. Expired records are kept until Purge so that Get can still
// distinguish an expired challenge from an unknown one.
func (s *MemoryStore) Store(ctx context.Context, c *Challenge) error {
	if c == nil || c.ID == "" {
		return ErrInvalidParameters
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[c.ID]; ok {
		return ErrChallengeExists
	}
	copied := *c
	copied.Value = append([]byte(nil), c.Value...)
	s.challenges[c.ID] = &copied
	return nil
}

// Get returns a copy of the challenge with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	copied.Value = append([]byte(nil), c.Value...)
	return &copied, nil
}

// Invalidate deletes the challenge with the given id.
func (s *MemoryStore) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return ErrNotFound
	}
	clear(c.Value)
	delete(s.challenges, id)
	return nil
}

// Purge removes challenges that expired before cutoff and returns how many
// were removed.
func (s *MemoryStore) Purge(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.challenges {
		if c.ExpiresAt.Before(cutoff) {
			clear(c.Value)
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of stored challenges.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}
