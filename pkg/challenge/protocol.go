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

// Package challenge re-authenticates a returning client by proving it can
// rebuild its KEM private key.
//
// Issue encapsulates to the client's stored public key and masks a random
// 32-byte value with the shared secret. The client rebuilds its private key
// from its PIN-derived half and the server-held PrivateKeyShare,
// decapsulates, unmasks and returns the value. Verify compares it in
// constant time and consumes the challenge whatever the outcome.
//
// Each attempt moves ISSUED -> VERIFIED | FAILED | EXPIRED exactly once.
package challenge

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/logger"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/correlation"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/metrics"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/throttle"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/validation"
)

const (
	// ValueSize is the size of the challenge value.
	ValueSize = 32

	// DefaultTTL is the challenge lifetime when none is configured.
	DefaultTTL = 5 * time.Minute

	// PurposeIssue and PurposeVerify are the throttle purposes.
	PurposeIssue  = "challenge-issue"
	PurposeVerify = "challenge-verify"
)

// Verification outcomes used in metrics.
const (
	outcomeIssued    = "issued"
	outcomeVerified  = "verified"
	outcomeNotFound  = "not_found"
	outcomeExpired   = "expired"
	outcomeFailed    = "failed"
	outcomeThrottled = "throttled"
)

// Throttle limits attempts per (email hash, purpose, tenant).
type Throttle interface {
	CheckThrottle(ctx context.Context, key throttle.Key) (throttle.Decision, error)
	RecordFailure(ctx context.Context, key throttle.Key)
	Reset(ctx context.Context, key throttle.Key)
}

// TunnelLookup finds a client's tunnel. It returns tunnel.ErrTunnelNotFound
// for an unknown client.
type TunnelLookup interface {
	LookupTunnel(ctx context.Context, tenantID, emailHash string) (*tunnel.ClientTunnel, error)
}

// Issued is returned to the client. Challenge is
// hex(KEM ciphertext || masked value); PrivateKeyShare is the hex encoded
// server half of the client's private key, sent alongside and never inside
// the challenge blob.
type Issued struct {
	ID              string    `json:"challengeId"`
	Challenge       string    `json:"challenge"`
	PrivateKeyShare string    `json:"privateKeyShare"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Config configures a Protocol.
type Config struct {
	Scheme   kem.Scheme   // defaults to kem.Default()
	Store    Store        // required
	Throttle Throttle     // required
	Tunnels  TunnelLookup // required

	// TTL defaults to DefaultTTL
	TTL time.Duration

	// ClientsHoldPrivateKeys is set when tunnels are created without a
	// PrivateKeyShare. Decoys then omit the share like real responses do.
	// A Protocol serving both kinds of tunnel reveals which kind a client
	// has, and so whether it exists, by the presence of the share.
	ClientsHoldPrivateKeys bool

	Logger logger.Logger
	Random io.Reader
	Now    func() time.Time
}

// Protocol issues and verifies challenges.
type Protocol struct {
	scheme   kem.Scheme
	store    Store
	throttle Throttle
	tunnels  TunnelLookup
	ttl      time.Duration
	log      logger.Logger
	random   io.Reader
	now      func() time.Time

	// decoyShare controls whether decoys carry a PrivateKeyShare.
	decoyShare bool

	// decoyPublicKey receives the encapsulation performed for unknown
	// clients so both paths do the same work.
	decoyPublicKey []byte
}

// NewProtocol returns a Protocol.
func NewProtocol(config *Config) (*Protocol, error) {
	if config == nil || config.Store == nil || config.Throttle == nil || config.Tunnels == nil {
		return nil, fmt.Errorf("%w: store, throttle and tunnel lookup are required", ErrInvalidParameters)
	}
	p := &Protocol{
		scheme:   config.Scheme,
		store:    config.Store,
		throttle: config.Throttle,
		tunnels:  config.Tunnels,
		ttl:      config.TTL,
		log:      config.Logger,
		random:   config.Random,
		now:      config.Now,

		decoyShare: !config.ClientsHoldPrivateKeys,
	}
	if p.scheme == nil {
		p.scheme = kem.Default()
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTTL
	}
	if p.log == nil {
		p.log = logger.NewNoOp()
	}
	if p.random == nil {
		p.random = rand.Reader
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.scheme.SharedSecretSize() < ValueSize {
		return nil, fmt.Errorf("%w: %s shared secret is shorter than the challenge", ErrInvalidParameters, p.scheme.Name())
	}

	decoyPublicKey, decoyPrivateKey, err := p.scheme.GenerateKeyPair()
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	clear(decoyPrivateKey)
	p.decoyPublicKey = decoyPublicKey
	return p, nil
}

// Issue creates a challenge for a client. Unknown clients receive a decoy
// of identical shape that is never stored, so the response does not reveal
// whether a tunnel exists. See Config.ClientsHoldPrivateKeys for the share.
func (p *Protocol) Issue(ctx context.Context, tenantID, emailHash string) (issued *Issued, err error) {
	start := p.now()
	defer func() {
		metrics.RecordOperation(metrics.OpIssueChallenge, metrics.Status(err), p.now().Sub(start).Seconds())
	}()

	if err := validateClient(tenantID, emailHash); err != nil {
		return nil, err
	}
	if err := p.checkThrottle(ctx, throttle.Key{EmailHash: emailHash, Purpose: PurposeIssue, TenantID: tenantID}); err != nil {
		metrics.RecordChallengeIssued(outcomeThrottled)
		return nil, err
	}

	log := correlation.Logger(ctx, p.log)
	t, err := p.tunnels.LookupTunnel(ctx, tenantID, emailHash)
	if errors.Is(err, tunnel.ErrTunnelNotFound) {
		log.Debug("challenge requested for unknown client",
			logger.String("tenant_id", tenantID),
			logger.Fingerprint("client", []byte(emailHash)))
		metrics.RecordChallengeIssued(outcomeIssued)
		return p.decoy()
	}
	if err != nil {
		return nil, err
	}

	value := make([]byte, ValueSize)
	if _, err := io.ReadFull(p.random, value); err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(value)

	ciphertext, sharedSecret, err := p.scheme.Encapsulate(t.ClientPublicKey)
	if err != nil {
		metrics.RecordCryptoFailure(metrics.PrimitiveKEM)
		log.Warn("challenge encapsulation failed", logger.String("tenant_id", tenantID), logger.String("tunnel_id", t.ID))
		return nil, ErrCryptoPrimitiveFailure
	}
	defer clear(sharedSecret)

	privateKeyShare := ""
	if t.HasPrivateKeyShare() {
		if privateKeyShare, err = t.PrivateKeyShare.EncodeHex(); err != nil {
			return nil, fmt.Errorf("%w: stored private key share", ErrInvalidParameters)
		}
	}

	c := &Challenge{
		ID:        uuid.NewString(),
		Value:     value,
		EmailHash: emailHash,
		TenantID:  tenantID,
		ExpiresAt: p.now().Add(p.ttl).UTC(),
	}
	if err := p.store.Store(ctx, c); err != nil {
		return nil, err
	}

	metrics.RecordChallengeIssued(outcomeIssued)
	log.Debug("challenge issued",
		logger.String("challenge_id", c.ID),
		logger.String("tenant_id", tenantID),
		logger.String("tunnel_id", t.ID),
		logger.Fingerprint("client", []byte(emailHash)))

	return &Issued{
		ID:              c.ID,
		Challenge:       encodeBlob(ciphertext, mask(value, sharedSecret)),
		PrivateKeyShare: privateKeyShare,
		ExpiresAt:       c.ExpiresAt,
	}, nil
}

// decoy returns a random response with the same lengths as a real one.
func (p *Protocol) decoy() (*Issued, error) {
	ciphertext, sharedSecret, err := p.scheme.Encapsulate(p.decoyPublicKey)
	if err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	clear(sharedSecret)

	masked := make([]byte, ValueSize)
	if _, err := io.ReadFull(p.random, masked); err != nil {
		return nil, ErrCryptoPrimitiveFailure
	}
	share := ""
	if p.decoyShare {
		shareY := make([]byte, p.scheme.PrivateKeySize())
		if _, err := io.ReadFull(p.random, shareY); err != nil {
			return nil, ErrCryptoPrimitiveFailure
		}
		if share, err = (secretsharing.Share{X: secretsharing.ServerX, Y: shareY}).EncodeHex(); err != nil {
			return nil, ErrCryptoPrimitiveFailure
		}
	}
	return &Issued{
		ID:              uuid.NewString(),
		Challenge:       encodeBlob(ciphertext, masked),
		PrivateKeyShare: share,
		ExpiresAt:       p.now().Add(p.ttl).UTC(),
	}, nil
}

// Verify checks a client's response to challenge id. The challenge is
// consumed whatever the outcome; a replay returns ErrNotFound.
func (p *Protocol) Verify(ctx context.Context, tenantID, emailHash, id string, response []byte) (err error) {
	start := p.now()
	defer func() {
		metrics.RecordOperation(metrics.OpVerifyChallenge, metrics.Status(err), p.now().Sub(start).Seconds())
	}()

	if err := validateClient(tenantID, emailHash); err != nil {
		return err
	}
	key := throttle.Key{EmailHash: emailHash, Purpose: PurposeVerify, TenantID: tenantID}
	if err := p.checkThrottle(ctx, key); err != nil {
		metrics.RecordChallengeVerification(outcomeThrottled)
		return err
	}

	c, err := p.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// keep the comparison cost on this path as well
		var dummy [ValueSize]byte
		subtle.ConstantTimeCompare(dummy[:], response)
		return p.fail(ctx, key, outcomeNotFound, ErrNotFound)
	}
	if err != nil {
		return err
	}
	defer clear(c.Value)

	// consuming is the commit point: a concurrent verify of the same id
	// loses here and sees ErrNotFound
	if err := p.store.Invalidate(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return p.fail(ctx, key, outcomeNotFound, ErrNotFound)
		}
		return err
	}

	if !p.now().Before(c.ExpiresAt) {
		return p.fail(ctx, key, outcomeExpired, ErrExpired)
	}

	match := subtle.ConstantTimeCompare(c.Value, response)
	match &= subtle.ConstantTimeCompare([]byte(c.TenantID), []byte(tenantID))
	match &= subtle.ConstantTimeCompare([]byte(c.EmailHash), []byte(emailHash))
	if match != 1 {
		return p.fail(ctx, key, outcomeFailed, ErrAuthenticationFailure)
	}

	p.throttle.Reset(ctx, key)
	p.throttle.Reset(ctx, throttle.Key{EmailHash: emailHash, Purpose: PurposeIssue, TenantID: tenantID})
	metrics.RecordChallengeVerification(outcomeVerified)
	correlation.Logger(ctx, p.log).Info("challenge verified",
		logger.String("challenge_id", id),
		logger.String("tenant_id", tenantID),
		logger.Fingerprint("client", []byte(emailHash)))
	return nil
}

func (p *Protocol) fail(ctx context.Context, key throttle.Key, outcome string, err error) error {
	p.throttle.RecordFailure(ctx, key)
	metrics.RecordChallengeVerification(outcome)
	correlation.Logger(ctx, p.log).Info("challenge verification failed",
		logger.String("tenant_id", validation.SanitizeForLog(key.TenantID)),
		logger.Fingerprint("client", []byte(key.EmailHash)),
		logger.String("outcome", outcome))
	return err
}

// validateClient checks the identifiers that key the throttle and the store.
func validateClient(tenantID, emailHash string) error {
	if tenantID == "" || emailHash == "" {
		return fmt.Errorf("%w: tenant id and email hash are required", ErrInvalidParameters)
	}
	if err := validation.ValidateIdentifier("tenant id", tenantID); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	if err := validation.ValidateEmailHash(emailHash); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}
	return nil
}

func (p *Protocol) checkThrottle(ctx context.Context, key throttle.Key) error {
	decision, err := p.throttle.CheckThrottle(ctx, key)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		metrics.RecordThrottleRejection(key.Purpose)
		return &ThrottledError{RetryAfter: decision.RetryAfter, FailedAttempts: decision.FailedAttempts}
	}
	return nil
}

// mask XORs value with the first len(value) bytes of pad.
func mask(value, pad []byte) []byte {
	out := make([]byte, len(value))
	subtle.XORBytes(out, value, pad[:len(value)])
	return out
}

func encodeBlob(ciphertext, masked []byte) string {
	blob := make([]byte, 0, len(ciphertext)+len(masked))
	blob = append(blob, ciphertext...)
	blob = append(blob, masked...)
	return hex.EncodeToString(blob)
}
