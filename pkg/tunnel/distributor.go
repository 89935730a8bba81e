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
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/logger"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/correlation"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/aead"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/metrics"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/validation"
)

// Config configures a Distributor. Zero values select defaults.
type Config struct {
	// Scheme defaults to kem.Default()
	Scheme kem.Scheme

	// Cipher defaults to AES-256-GCM
	Cipher aead.Cipher

	// Logger defaults to a no-op logger
	Logger logger.Logger

	// Random is the tunnel key source. Defaults to crypto/rand.
	Random io.Reader

	// Now defaults to time.Now
	Now func() time.Time
}

// Distributor creates tunnels and wraps tunnel keys for their recipients.
type Distributor struct {
	scheme  kem.Scheme
	cipher  aead.Cipher
	wrapper *Wrapper
	log     logger.Logger
	random  io.Reader
	now     func() time.Time
}

// NewDistributor returns a Distributor. config may be nil.
func NewDistributor(config *Config) *Distributor {
	if config == nil {
		config = &Config{}
	}
	d := &Distributor{
		scheme: config.Scheme,
		cipher: config.Cipher,
		log:    config.Logger,
		random: config.Random,
		now:    config.Now,
	}
	if d.scheme == nil {
		d.scheme = kem.Default()
	}
	if d.cipher == nil {
		d.cipher = aead.NewAESGCM(nil)
	}
	if d.log == nil {
		d.log = logger.NewNoOp()
	}
	if d.random == nil {
		d.random = rand.Reader
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.wrapper = NewWrapper(d.scheme, d.cipher)
	return d
}

// Scheme returns the KEM used for wrapping.
func (d *Distributor) Scheme() kem.Scheme {
	return d.scheme
}

// NewTunnelKey returns a fresh random tunnel key.
func (d *Distributor) NewTunnelKey() ([]byte, error) {
	key := make([]byte, TunnelKeySize)
	if _, err := io.ReadFull(d.random, key); err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	return key, nil
}

// CreateRequest holds the inputs for Create.
type CreateRequest struct {
	TenantID  string
	EmailHash string

	// TunnelKey is the freshly generated key to distribute.
	TunnelKey []byte

	// ClientPublicKey is the client's KEM public key.
	ClientPublicKey []byte

	// ClientShareY is the PIN-derived client half, same length as TunnelKey.
	ClientShareY []byte

	// ClientPrivateKey and PrivateKeyShareY are optional. When both are set
	// the private key is split so the client can rebuild it from its PIN.
	ClientPrivateKey []byte
	PrivateKeyShareY []byte

	// Staff are the currently authorized staff members.
	Staff []StaffRecipient
}

// CreateResult is the set of records to persist atomically.
type CreateResult struct {
	Tunnel      *ClientTunnel
	StaffShares []StaffKeyShare
}

// Create splits and wraps a tunnel key for the client and every staff
// recipient. Any failure aborts the whole operation.
func (d *Distributor) Create(ctx context.Context, req *CreateRequest) (result *CreateResult, err error) {
	start := d.now()
	defer func() {
		metrics.RecordOperation(metrics.OpCreateTunnel, metrics.Status(err), d.now().Sub(start).Seconds())
	}()

	if err := d.validate(req); err != nil {
		return nil, err
	}

	log := correlation.Logger(ctx, d.log)
	serverShare, err := secretsharing.SplitDeterministic(req.TunnelKey, req.ClientShareY)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	tunnel := &ClientTunnel{
		ID:              uuid.NewString(),
		TenantID:        req.TenantID,
		EmailHash:       req.EmailHash,
		ClientPublicKey: append([]byte(nil), req.ClientPublicKey...),
		ServerKeyShare:  serverShare,
		CreatedAt:       d.now().UTC(),
	}

	if len(req.ClientPrivateKey) > 0 {
		privateShare, err := secretsharing.SplitDeterministic(req.ClientPrivateKey, req.PrivateKeyShareY)
		if err != nil {
			return nil, fmt.Errorf("%w: private key share: %w", ErrInvalidParameters, err)
		}
		tunnel.PrivateKeyShare = privateShare
	}

	tunnel.ClientEncryptedTunnelKey, err = d.wrapper.Wrap(req.ClientPublicKey, req.TunnelKey)
	if err != nil {
		log.Warn("client key wrap failed", logger.String("tenant_id", req.TenantID), logger.Error(err))
		return nil, err
	}
	metrics.RecordKeyWrap(metrics.RecipientClient)

	shares := make([]StaffKeyShare, 0, len(req.Staff))
	for _, staff := range req.Staff {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		share, err := d.wrapForStaff(tunnel.ID, req.TunnelKey, staff)
		if err != nil {
			log.Warn("staff key wrap failed",
				logger.String("tenant_id", req.TenantID),
				logger.String("user_id", staff.UserID),
				logger.Error(err))
			return nil, err
		}
		shares = append(shares, *share)
	}

	metrics.RecordTunnelCreated()
	log.Info("tunnel created",
		logger.String("tunnel_id", tunnel.ID),
		logger.String("tenant_id", tunnel.TenantID),
		logger.Fingerprint("client", []byte(tunnel.EmailHash)),
		logger.Int("staff_shares", len(shares)),
		logger.Bool("private_key_share", tunnel.HasPrivateKeyShare()))

	return &CreateResult{Tunnel: tunnel, StaffShares: shares}, nil
}

func (d *Distributor) validate(req *CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidParameters)
	}
	if req.TenantID == "" || req.EmailHash == "" {
		return fmt.Errorf("%w: tenant id and email hash are required", ErrInvalidParameters)
	}
	if err := validation.ValidateIdentifier("tenant id", req.TenantID); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	if err := validation.ValidateEmailHash(req.EmailHash); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	if len(req.TunnelKey) != TunnelKeySize {
		return fmt.Errorf("%w: tunnel key must be %d bytes", ErrInvalidParameters, TunnelKeySize)
	}
	if len(req.ClientPublicKey) != d.scheme.PublicKeySize() {
		return fmt.Errorf("%w: client public key must be %d bytes", ErrInvalidParameters, d.scheme.PublicKeySize())
	}
	if len(req.ClientPrivateKey) > 0 && len(req.PrivateKeyShareY) == 0 {
		return fmt.Errorf("%w: private key share is required with a private key", ErrInvalidParameters)
	}
	seen := make(map[string]struct{}, len(req.Staff))
	for _, staff := range req.Staff {
		if err := validation.ValidateIdentifier("staff user id", staff.UserID); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
		}
		if _, dup := seen[staff.UserID]; dup {
			return fmt.Errorf("%w: duplicate staff user %s", ErrInvalidParameters, staff.UserID)
		}
		seen[staff.UserID] = struct{}{}
	}
	return nil
}

// GrantStaff wraps an existing tunnel key for a staff member added after the
// tunnel was created.
func (d *Distributor) GrantStaff(ctx context.Context, tunnelID string, tunnelKey []byte, staff StaffRecipient) (share *StaffKeyShare, err error) {
	start := d.now()
	defer func() {
		metrics.RecordOperation(metrics.OpGrantStaff, metrics.Status(err), d.now().Sub(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tunnelID == "" {
		return nil, fmt.Errorf("%w: tunnel id is required", ErrInvalidParameters)
	}
	if err := validation.ValidateIdentifier("staff user id", staff.UserID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	if len(tunnelKey) != TunnelKeySize {
		return nil, fmt.Errorf("%w: tunnel key must be %d bytes", ErrInvalidParameters, TunnelKeySize)
	}
	share, err = d.wrapForStaff(tunnelID, tunnelKey, staff)
	if err != nil {
		return nil, err
	}
	correlation.Logger(ctx, d.log).Info("staff granted", logger.String("tunnel_id", tunnelID), logger.String("user_id", staff.UserID))
	return share, nil
}

func (d *Distributor) wrapForStaff(tunnelID string, tunnelKey []byte, staff StaffRecipient) (*StaffKeyShare, error) {
	wrapped, err := d.wrapper.Wrap(staff.PublicKey, tunnelKey)
	if err != nil {
		return nil, err
	}
	metrics.RecordKeyWrap(metrics.RecipientStaff)
	return &StaffKeyShare{
		TunnelID:           tunnelID,
		UserID:             staff.UserID,
		EncryptedTunnelKey: wrapped,
	}, nil
}

// OpenClientKey recovers the tunnel key from the client's own wrapped copy.
func (d *Distributor) OpenClientKey(privateKey []byte, tunnel *ClientTunnel) ([]byte, error) {
	if tunnel == nil {
		return nil, fmt.Errorf("%w: tunnel is nil", ErrInvalidParameters)
	}
	return d.wrapper.Unwrap(privateKey, tunnel.ClientEncryptedTunnelKey)
}

// OpenStaffShare recovers the tunnel key from a staff member's share.
func (d *Distributor) OpenStaffShare(privateKey []byte, share *StaffKeyShare) ([]byte, error) {
	if share == nil {
		return nil, fmt.Errorf("%w: staff share is nil", ErrInvalidParameters)
	}
	return d.wrapper.Unwrap(privateKey, share.EncryptedTunnelKey)
}

// SealAppointment encrypts an appointment payload under tunnelKey.
func (d *Distributor) SealAppointment(tunnelKey, plaintext []byte) (appt *EncryptedAppointment, err error) {
	start := d.now()
	defer func() {
		metrics.RecordOperation(metrics.OpSealAppointment, metrics.Status(err), d.now().Sub(start).Seconds())
	}()

	sealed, err := d.cipher.Encrypt(plaintext, tunnelKey, []byte(aead.AppointmentAD))
	if err != nil {
		if errors.Is(err, aead.ErrInvalidParameters) {
			return nil, fmt.Errorf("%w: tunnel key must be %d bytes", ErrInvalidParameters, TunnelKeySize)
		}
		metrics.RecordCryptoFailure(metrics.PrimitiveAEAD)
		return nil, ErrCryptoPrimitiveFailure
	}
	return &EncryptedAppointment{
		EncryptedPayload: sealed.Ciphertext,
		IV:               sealed.IV,
		AuthTag:          sealed.AuthTag,
	}, nil
}

// OpenAppointment decrypts an appointment payload. Any modification of the
// payload, IV or tag yields ErrAuthenticationFailure.
func (d *Distributor) OpenAppointment(tunnelKey []byte, appt *EncryptedAppointment) (plaintext []byte, err error) {
	start := d.now()
	defer func() {
		metrics.RecordOperation(metrics.OpOpenAppointment, metrics.Status(err), d.now().Sub(start).Seconds())
	}()

	if appt == nil {
		return nil, fmt.Errorf("%w: appointment is nil", ErrInvalidParameters)
	}
	plaintext, err = d.cipher.Decrypt(&aead.Sealed{
		Ciphertext: appt.EncryptedPayload,
		IV:         appt.IV,
		AuthTag:    appt.AuthTag,
	}, tunnelKey, []byte(aead.AppointmentAD))
	if err != nil {
		switch {
		case errors.Is(err, aead.ErrAuthenticationFailure):
			return nil, ErrAuthenticationFailure
		case errors.Is(err, aead.ErrInvalidParameters):
			return nil, fmt.Errorf("%w: malformed appointment", ErrInvalidParameters)
		default:
			return nil, ErrCryptoPrimitiveFailure
		}
	}
	return plaintext, nil
}

// RecoverSecret rebuilds a secret from a server-held share and the
// PIN-derived client half.
func RecoverSecret(serverShare secretsharing.Share, clientShareY []byte) ([]byte, error) {
	if serverShare.X != secretsharing.ServerX {
		return nil, fmt.Errorf("%w: unexpected server share x = %d", ErrInvalidParameters, serverShare.X)
	}
	if len(clientShareY) != len(serverShare.Y) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, secretsharing.ErrLengthMismatch)
	}
	secret, err := secretsharing.Combine([]secretsharing.Share{
		secretsharing.ClientShare(clientShareY),
		serverShare,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return secret, nil
}
