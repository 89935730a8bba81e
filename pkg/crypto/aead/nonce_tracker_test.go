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

package aead

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceTracker(t *testing.T) {
	keyA := []byte("key-a-0123456789abcdef0123456789")
	keyB := []byte("key-b-0123456789abcdef0123456789")
	nonce := []byte("nonce-0123456789")

	nt := NewNonceTracker(true)
	assert.True(t, nt.IsEnabled())

	require.NoError(t, nt.CheckAndRecordNonce(keyA, nonce))
	assert.ErrorIs(t, nt.CheckAndRecordNonce(keyA, nonce), ErrNonceReuse)
	assert.True(t, nt.Contains(keyA, nonce))
	assert.False(t, nt.Contains(keyB, nonce))
	assert.Equal(t, 1, nt.Count(keyA))

	require.NoError(t, nt.CheckAndRecordNonce(keyB, nonce))

	nt.Forget(keyA)
	assert.Equal(t, 0, nt.Count(keyA))
	assert.Equal(t, 1, nt.Count(keyB))

	nt.Clear()
	assert.Equal(t, 0, nt.Count(keyB))
}

func TestNonceTrackerDisabled(t *testing.T) {
	key := []byte("key")
	nonce := []byte("nonce")

	nt := NewNonceTracker(false)
	require.NoError(t, nt.CheckAndRecordNonce(key, nonce))
	require.NoError(t, nt.CheckAndRecordNonce(key, nonce))
	assert.False(t, nt.Contains(key, nonce))

	nt.SetEnabled(true)
	require.NoError(t, nt.CheckAndRecordNonce(key, nonce))
	assert.ErrorIs(t, nt.CheckAndRecordNonce(key, nonce), ErrNonceReuse)
}

func TestNonceTrackerConcurrent(t *testing.T) {
	nt := NewNonceTracker(true)
	key := []byte("shared key")
	nonce := []byte("contended nonce")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if nt.CheckAndRecordNonce(key, nonce) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}
