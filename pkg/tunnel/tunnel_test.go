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
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
)

var testEmailHash = EmailHash("client@example.com")

func testArgon2() *kdf.Argon2Params {
	return &kdf.Argon2Params{Time: 1, MemoryKiB: kdf.MinArgon2Memory, Threads: 1}
}

type keyPair struct {
	pub, priv []byte
}

func newKeyPair(t *testing.T, s kem.Scheme) keyPair {
	t.Helper()
	pub, priv, err := s.GenerateKeyPair()
	require.NoError(t, err)
	return keyPair{pub: pub, priv: priv}
}

func newTestDistributor() *Distributor {
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	return NewDistributor(&Config{Now: func() time.Time { return fixed }})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	d := newTestDistributor()
	client := newKeyPair(t, d.Scheme())
	alice := newKeyPair(t, d.Scheme())
	bob := newKeyPair(t, d.Scheme())

	tunnelKey, err := d.NewTunnelKey()
	require.NoError(t, err)
	clientShare := bytes.Repeat([]byte{0x3c}, TunnelKeySize)

	result, err := d.Create(ctx, &CreateRequest{
		TenantID:        "tenant-1",
		EmailHash:       EmailHash("client@example.com"),
		TunnelKey:       tunnelKey,
		ClientPublicKey: client.pub,
		ClientShareY:    clientShare,
		Staff: []StaffRecipient{
			{UserID: "alice", PublicKey: alice.pub},
			{UserID: "bob", PublicKey: bob.pub},
		},
	})
	require.NoError(t, err)

	tun := result.Tunnel
	assert.NotEmpty(t, tun.ID)
	assert.Equal(t, "tenant-1", tun.TenantID)
	assert.Equal(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), tun.CreatedAt)
	assert.False(t, tun.HasPrivateKeyShare())
	assert.Equal(t, secretsharing.ServerX, tun.ServerKeyShare.X)
	assert.NotEqual(t, tunnelKey, tun.ServerKeyShare.Y)

	t.Run("pin path", func(t *testing.T) {
		got, err := RecoverSecret(tun.ServerKeyShare, clientShare)
		require.NoError(t, err)
		assert.Equal(t, tunnelKey, got)
	})

	t.Run("client wrapped copy", func(t *testing.T) {
		got, err := d.OpenClientKey(client.priv, tun)
		require.NoError(t, err)
		assert.Equal(t, tunnelKey, got)
	})

	t.Run("staff shares", func(t *testing.T) {
		require.Len(t, result.StaffShares, 2)
		privs := map[string][]byte{"alice": alice.priv, "bob": bob.priv}
		for _, share := range result.StaffShares {
			assert.Equal(t, tun.ID, share.TunnelID)
			got, err := d.OpenStaffShare(privs[share.UserID], &share)
			require.NoError(t, err)
			assert.Equal(t, tunnelKey, got)
		}
	})

	t.Run("wrong staff key", func(t *testing.T) {
		_, err := d.OpenStaffShare(bob.priv, &result.StaffShares[0])
		assert.ErrorIs(t, err, ErrAuthenticationFailure)
	})

	t.Run("shares are independent", func(t *testing.T) {
		assert.NotEqual(t, result.StaffShares[0].EncryptedTunnelKey, result.StaffShares[1].EncryptedTunnelKey)
		assert.NotEqual(t, tun.ClientEncryptedTunnelKey, result.StaffShares[0].EncryptedTunnelKey)
	})
}

func TestCreateWithPrivateKeyShare(t *testing.T) {
	d := newTestDistributor()
	client := newKeyPair(t, d.Scheme())
	tunnelKey, err := d.NewTunnelKey()
	require.NoError(t, err)
	privateShareY := bytes.Repeat([]byte{0x99}, len(client.priv))

	result, err := d.Create(context.Background(), &CreateRequest{
		TenantID:         "tenant-1",
		EmailHash:        testEmailHash,
		TunnelKey:        tunnelKey,
		ClientPublicKey:  client.pub,
		ClientShareY:     bytes.Repeat([]byte{0x01}, TunnelKeySize),
		ClientPrivateKey: client.priv,
		PrivateKeyShareY: privateShareY,
	})
	require.NoError(t, err)
	require.True(t, result.Tunnel.HasPrivateKeyShare())
	assert.Empty(t, result.StaffShares)

	priv, err := RecoverSecret(result.Tunnel.PrivateKeyShare, privateShareY)
	require.NoError(t, err)
	assert.Equal(t, client.priv, priv)
}

func TestCreateValidation(t *testing.T) {
	d := newTestDistributor()
	client := newKeyPair(t, d.Scheme())
	staff := newKeyPair(t, d.Scheme())
	key := bytes.Repeat([]byte{7}, TunnelKeySize)
	share := bytes.Repeat([]byte{8}, TunnelKeySize)

	valid := func() *CreateRequest {
		return &CreateRequest{
			TenantID:        "t",
			EmailHash:       testEmailHash,
			TunnelKey:       key,
			ClientPublicKey: client.pub,
			ClientShareY:    share,
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"missing tenant", func(r *CreateRequest) { r.TenantID = "" }},
		{"missing email hash", func(r *CreateRequest) { r.EmailHash = "" }},
		{"email hash not a digest", func(r *CreateRequest) { r.EmailHash = "e" }},
		{"email hash uppercase", func(r *CreateRequest) { r.EmailHash = strings.ToUpper(testEmailHash) }},
		{"tenant with salt separator", func(r *CreateRequest) { r.TenantID = "a/b" }},
		{"short tunnel key", func(r *CreateRequest) { r.TunnelKey = key[:16] }},
		{"bad public key", func(r *CreateRequest) { r.ClientPublicKey = client.pub[:100] }},
		{"client share length", func(r *CreateRequest) { r.ClientShareY = share[:31] }},
		{"private key without share", func(r *CreateRequest) { r.ClientPrivateKey = client.priv }},
		{"private key share length", func(r *CreateRequest) {
			r.ClientPrivateKey = client.priv
			r.PrivateKeyShareY = []byte{1}
		}},
		{"duplicate staff", func(r *CreateRequest) {
			r.Staff = []StaffRecipient{{UserID: "a", PublicKey: staff.pub}, {UserID: "a", PublicKey: staff.pub}}
		}},
		{"staff without id", func(r *CreateRequest) {
			r.Staff = []StaffRecipient{{PublicKey: staff.pub}}
		}},
		{"staff id with newline", func(r *CreateRequest) {
			r.Staff = []StaffRecipient{{UserID: "a\nb", PublicKey: staff.pub}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			result, err := d.Create(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidParameters)
			assert.Nil(t, result)
		})
	}

	result, err := d.Create(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	assert.Nil(t, result)

	_, err = d.Create(context.Background(), valid())
	assert.NoError(t, err)
}

func TestCreateAbortsOnStaffFailure(t *testing.T) {
	d := newTestDistributor()
	client := newKeyPair(t, d.Scheme())
	good := newKeyPair(t, d.Scheme())

	result, err := d.Create(context.Background(), &CreateRequest{
		TenantID:        "t",
		EmailHash:       testEmailHash,
		TunnelKey:       bytes.Repeat([]byte{1}, TunnelKeySize),
		ClientPublicKey: client.pub,
		ClientShareY:    bytes.Repeat([]byte{2}, TunnelKeySize),
		Staff: []StaffRecipient{
			{UserID: "good", PublicKey: good.pub},
			{UserID: "broken", PublicKey: []byte("not a key")},
		},
	})
	assert.ErrorIs(t, err, ErrCryptoPrimitiveFailure)
	assert.Nil(t, result)
}

func TestCreateCancelled(t *testing.T) {
	d := newTestDistributor()
	client := newKeyPair(t, d.Scheme())
	staff := newKeyPair(t, d.Scheme())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Create(ctx, &CreateRequest{
		TenantID:        "t",
		EmailHash:       testEmailHash,
		TunnelKey:       bytes.Repeat([]byte{1}, TunnelKeySize),
		ClientPublicKey: client.pub,
		ClientShareY:    bytes.Repeat([]byte{2}, TunnelKeySize),
		Staff:           []StaffRecipient{{UserID: "s", PublicKey: staff.pub}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestGrantAndRevokeStaff(t *testing.T) {
	ctx := context.Background()
	d := newTestDistributor()
	registry := NewMemoryRegistry()
	client := newKeyPair(t, d.Scheme())
	alice := newKeyPair(t, d.Scheme())
	carol := newKeyPair(t, d.Scheme())
	tunnelKey, err := d.NewTunnelKey()
	require.NoError(t, err)

	result, err := d.Create(ctx, &CreateRequest{
		TenantID:        "t",
		EmailHash:       testEmailHash,
		TunnelKey:       tunnelKey,
		ClientPublicKey: client.pub,
		ClientShareY:    bytes.Repeat([]byte{5}, TunnelKeySize),
		Staff:           []StaffRecipient{{UserID: "alice", PublicKey: alice.pub}},
	})
	require.NoError(t, err)
	require.NoError(t, registry.Save(ctx, result))
	assert.ErrorIs(t, registry.Save(ctx, result), ErrTunnelExists)

	tun, err := registry.LookupTunnel(ctx, "t", testEmailHash)
	require.NoError(t, err)
	assert.Equal(t, result.Tunnel.ID, tun.ID)

	share, err := d.GrantStaff(ctx, tun.ID, tunnelKey, StaffRecipient{UserID: "carol", PublicKey: carol.pub})
	require.NoError(t, err)
	require.NoError(t, registry.PutStaffShare(ctx, share))
	assert.Equal(t, []string{"alice", "carol"}, registry.StaffUsers(tun.ID))

	stored, err := registry.StaffShare(ctx, tun.ID, "carol")
	require.NoError(t, err)
	got, err := d.OpenStaffShare(carol.priv, stored)
	require.NoError(t, err)
	assert.Equal(t, tunnelKey, got)

	require.NoError(t, registry.RevokeStaff(ctx, tun.ID, "alice"))
	_, err = registry.StaffShare(ctx, tun.ID, "alice")
	assert.ErrorIs(t, err, ErrStaffShareNotFound)
	assert.ErrorIs(t, registry.RevokeStaff(ctx, tun.ID, "alice"), ErrStaffShareNotFound)

	// revocation leaves the other holders untouched
	stored, err = registry.StaffShare(ctx, tun.ID, "carol")
	require.NoError(t, err)
	got, err = d.OpenStaffShare(carol.priv, stored)
	require.NoError(t, err)
	assert.Equal(t, tunnelKey, got)

	_, err = d.GrantStaff(ctx, "", tunnelKey, StaffRecipient{UserID: "x", PublicKey: carol.pub})
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = d.GrantStaff(ctx, tun.ID, tunnelKey[:5], StaffRecipient{UserID: "x", PublicKey: carol.pub})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestRegistryNotFound(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	_, err := r.LookupTunnel(ctx, "t", "missing")
	assert.ErrorIs(t, err, ErrTunnelNotFound)
	assert.ErrorIs(t, r.PutStaffShare(ctx, &StaffKeyShare{TunnelID: "nope", UserID: "u"}), ErrTunnelNotFound)
	assert.ErrorIs(t, r.RevokeStaff(ctx, "nope", "u"), ErrTunnelNotFound)
	assert.ErrorIs(t, r.Save(ctx, nil), ErrInvalidParameters)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryCopiesKeyMaterial(t *testing.T) {
	ctx := context.Background()
	d := newTestDistributor()
	registry := NewMemoryRegistry()
	staff := newKeyPair(t, d.Scheme())

	result, err := d.Onboard(ctx, &OnboardRequest{
		TenantID: "salon-7",
		Email:    "client@example.com",
		PIN:      []byte("482193"),
		Staff:    []StaffRecipient{{UserID: "stylist", PublicKey: staff.pub}},
		Argon2:   testArgon2(),
	})
	require.NoError(t, err)
	require.NoError(t, registry.Save(ctx, result.CreateResult))
	want := *result.Tunnel
	want.ServerKeyShare = result.Tunnel.ServerKeyShare.Clone()
	want.PrivateKeyShare = result.Tunnel.PrivateKeyShare.Clone()
	want.ClientPublicKey = bytes.Clone(result.Tunnel.ClientPublicKey)
	want.ClientEncryptedTunnelKey = bytes.Clone(result.Tunnel.ClientEncryptedTunnelKey)
	wantStaffKey := bytes.Clone(result.StaffShares[0].EncryptedTunnelKey)

	// the caller wiping its result must not reach the stored record
	result.Tunnel.ServerKeyShare.Wipe()
	result.Tunnel.PrivateKeyShare.Wipe()
	clear(result.Tunnel.ClientPublicKey)
	clear(result.Tunnel.ClientEncryptedTunnelKey)
	clear(result.StaffShares[0].EncryptedTunnelKey)

	got, err := registry.LookupTunnel(ctx, "salon-7", want.EmailHash)
	require.NoError(t, err)
	assert.Equal(t, &want, got)

	// nor may wiping a looked-up record
	got.ServerKeyShare.Wipe()
	got.PrivateKeyShare.Wipe()
	clear(got.ClientPublicKey)
	clear(got.ClientEncryptedTunnelKey)

	again, err := registry.LookupTunnel(ctx, "salon-7", want.EmailHash)
	require.NoError(t, err)
	assert.Equal(t, &want, again)

	tunnelKey, _, err := d.UnlockWithPIN(again, []byte("482193"), testArgon2())
	require.NoError(t, err)
	assert.Equal(t, result.TunnelKey, tunnelKey)

	share, err := registry.StaffShare(ctx, want.ID, "stylist")
	require.NoError(t, err)
	assert.Equal(t, wantStaffKey, share.EncryptedTunnelKey)
	clear(share.EncryptedTunnelKey)

	share, err = registry.StaffShare(ctx, want.ID, "stylist")
	require.NoError(t, err)
	assert.Equal(t, wantStaffKey, share.EncryptedTunnelKey)

	granted, err := d.GrantStaff(ctx, want.ID, tunnelKey, StaffRecipient{UserID: "stylist", PublicKey: staff.pub})
	require.NoError(t, err)
	grantedKey := bytes.Clone(granted.EncryptedTunnelKey)
	require.NoError(t, registry.PutStaffShare(ctx, granted))
	clear(granted.EncryptedTunnelKey)

	share, err = registry.StaffShare(ctx, want.ID, "stylist")
	require.NoError(t, err)
	assert.Equal(t, grantedKey, share.EncryptedTunnelKey)
}

func TestAppointments(t *testing.T) {
	d := newTestDistributor()
	key, err := d.NewTunnelKey()
	require.NoError(t, err)
	payload := []byte(`{"service":"haircut","starts":"2026-10-20T14:00:00Z"}`)

	appt, err := d.SealAppointment(key, payload)
	require.NoError(t, err)
	assert.Len(t, appt.IV, 16)
	assert.Len(t, appt.AuthTag, 16)

	got, err := d.OpenAppointment(key, appt)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	tampered := *appt
	tampered.EncryptedPayload = bytes.Clone(appt.EncryptedPayload)
	tampered.EncryptedPayload[0] ^= 0x80
	got, err = d.OpenAppointment(key, &tampered)
	assert.ErrorIs(t, err, ErrAuthenticationFailure)
	assert.Nil(t, got)

	other, err := d.NewTunnelKey()
	require.NoError(t, err)
	_, err = d.OpenAppointment(other, appt)
	assert.ErrorIs(t, err, ErrAuthenticationFailure)

	_, err = d.SealAppointment(key[:10], payload)
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = d.OpenAppointment(key, &EncryptedAppointment{EncryptedPayload: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = d.OpenAppointment(key, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestEncryptedAppointmentJSON(t *testing.T) {
	raw, err := json.Marshal(&EncryptedAppointment{
		EncryptedPayload: []byte{1},
		IV:               []byte{2},
		AuthTag:          []byte{3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"encryptedPayload":"AQ==","iv":"Ag==","authTag":"Aw=="}`, string(raw))
}

func TestWrappedKeyEncoding(t *testing.T) {
	d := newTestDistributor()
	pair := newKeyPair(t, d.Scheme())
	w := NewWrapper(d.Scheme(), d.cipher)

	wrapped, err := w.Wrap(pair.pub, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	assert.Len(t, wrapped, d.Scheme().CiphertextSize()+16+16+32)

	parsed, err := ParseWrappedKey(d.Scheme(), wrapped)
	require.NoError(t, err)
	assert.Equal(t, wrapped, parsed.Marshal())

	_, err = ParseWrappedKey(d.Scheme(), wrapped[:d.Scheme().CiphertextSize()+32])
	assert.ErrorIs(t, err, ErrInvalidParameters)

	_, err = w.Wrap(pair.pub, nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	// a flipped bit anywhere in the AEAD part fails authentication
	tampered := bytes.Clone(wrapped)
	tampered[len(tampered)-1] ^= 1
	_, err = w.Unwrap(pair.priv, tampered)
	assert.ErrorIs(t, err, ErrAuthenticationFailure)
}

func TestEmailHash(t *testing.T) {
	h := EmailHash("Client@Example.com ")
	assert.Len(t, h, 64)
	assert.Equal(t, h, EmailHash("client@example.com"))
	assert.NotEqual(t, h, EmailHash("other@example.com"))
}

func TestDerivePINShare(t *testing.T) {
	id := ClientIdentifier("tenant", EmailHash("a@b.c"))

	a, err := DerivePINShare([]byte("4821"), id, PurposeTunnelKey, TunnelKeySize, testArgon2())
	require.NoError(t, err)
	b, err := DerivePINShare([]byte("4821"), id, PurposeTunnelKey, TunnelKeySize, testArgon2())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DerivePINShare([]byte("4821"), id, PurposePrivateKey, TunnelKeySize, testArgon2())
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = DerivePINShare(nil, id, PurposeTunnelKey, TunnelKeySize, testArgon2())
	assert.ErrorIs(t, err, ErrInvalidParameters)
	_, err = DerivePINShare([]byte("1"), id, PurposeTunnelKey, 0, testArgon2())
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestOnboardAndUnlock(t *testing.T) {
	ctx := context.Background()
	d := newTestDistributor()
	staff := newKeyPair(t, d.Scheme())

	result, err := d.Onboard(ctx, &OnboardRequest{
		TenantID: "salon-7",
		Email:    "client@example.com",
		PIN:      []byte("482193"),
		Staff:    []StaffRecipient{{UserID: "stylist", PublicKey: staff.pub}},
		Argon2:   testArgon2(),
	})
	require.NoError(t, err)
	require.True(t, result.Tunnel.HasPrivateKeyShare())
	assert.Equal(t, EmailHash("client@example.com"), result.Tunnel.EmailHash)

	tunnelKey, privateKey, err := d.UnlockWithPIN(result.Tunnel, []byte("482193"), testArgon2())
	require.NoError(t, err)
	assert.Equal(t, result.TunnelKey, tunnelKey)
	assert.Len(t, privateKey, d.Scheme().PrivateKeySize())

	staffKey, err := d.OpenStaffShare(staff.priv, &result.StaffShares[0])
	require.NoError(t, err)
	assert.Equal(t, result.TunnelKey, staffKey)

	_, _, err = d.UnlockWithPIN(result.Tunnel, []byte("000000"), testArgon2())
	assert.ErrorIs(t, err, ErrAuthenticationFailure)

	_, err = d.Onboard(ctx, &OnboardRequest{TenantID: "t", Email: "e"})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
