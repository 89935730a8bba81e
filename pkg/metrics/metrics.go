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

// Package metrics provides Prometheus instrumentation for tunnel key
// distribution and challenge-response operations. Label values never carry
// tenant, client or key identifiers.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics
	Namespace = "tunnelkeys"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelRecipient = "recipient"
	LabelOutcome   = "outcome"
	LabelPurpose   = "purpose"
	LabelPrimitive = "primitive"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Recipient values
	RecipientClient = "client"
	RecipientStaff  = "staff"

	// Primitive values
	PrimitiveKEM  = "kem"
	PrimitiveAEAD = "aead"
	PrimitiveKDF  = "kdf"

	// Operation names
	OpCreateTunnel    = "create_tunnel"
	OpGrantStaff      = "grant_staff"
	OpSealAppointment = "seal_appointment"
	OpOpenAppointment = "open_appointment"
	OpIssueChallenge  = "issue_challenge"
	OpVerifyChallenge = "verify_challenge"
)

var (
	// OperationsTotal counts protocol operations by name and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of protocol operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks operation latency in seconds. Buckets cover
	// Argon2 derivations as well as single KEM calls.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of protocol operations in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelOperation},
	)

	// TunnelsCreated counts client tunnels created.
	TunnelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tunnels_created_total",
			Help:      "Total number of client tunnels created",
		},
	)

	// KeyWraps counts tunnel keys wrapped per recipient kind.
	KeyWraps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "key_wraps_total",
			Help:      "Total number of tunnel key wraps by recipient kind",
		},
		[]string{LabelRecipient},
	)

	// ChallengesIssued counts issued challenges. The decoy outcome is
	// deliberately absent so the metric cannot reveal tunnel existence.
	ChallengesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "challenges_issued_total",
			Help:      "Total number of challenges issued by outcome",
		},
		[]string{LabelOutcome},
	)

	// ChallengeVerifications counts verification outcomes.
	ChallengeVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "challenge_verifications_total",
			Help:      "Total number of challenge verifications by outcome",
		},
		[]string{LabelOutcome},
	)

	// ThrottleRejections counts requests refused by the throttle.
	ThrottleRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "throttle_rejections_total",
			Help:      "Total number of throttled requests by purpose",
		},
		[]string{LabelPurpose},
	)

	// CryptoFailures counts primitive failures.
	CryptoFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crypto_failures_total",
			Help:      "Total number of cryptographic primitive failures",
		},
		[]string{LabelPrimitive},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordOperation records an operation with its duration in seconds.
//
// Example:
//
//	start := time.Now()
//	_, err := distributor.Create(ctx, req)
//	metrics.RecordOperation(metrics.OpCreateTunnel, metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordTunnelCreated increments the tunnel counter.
func RecordTunnelCreated() {
	if !enabled.Load() {
		return
	}
	TunnelsCreated.Inc()
}

// RecordKeyWrap counts a wrap for recipient (RecipientClient or RecipientStaff).
func RecordKeyWrap(recipient string) {
	if !enabled.Load() {
		return
	}
	KeyWraps.WithLabelValues(recipient).Inc()
}

// RecordChallengeIssued counts an issuance outcome.
func RecordChallengeIssued(outcome string) {
	if !enabled.Load() {
		return
	}
	ChallengesIssued.WithLabelValues(outcome).Inc()
}

// RecordChallengeVerification counts a verification outcome.
func RecordChallengeVerification(outcome string) {
	if !enabled.Load() {
		return
	}
	ChallengeVerifications.WithLabelValues(outcome).Inc()
}

// RecordThrottleRejection counts a throttled request.
func RecordThrottleRejection(purpose string) {
	if !enabled.Load() {
		return
	}
	ThrottleRejections.WithLabelValues(purpose).Inc()
}

// RecordCryptoFailure counts a primitive failure.
func RecordCryptoFailure(primitive string) {
	if !enabled.Load() {
		return
	}
	CryptoFailures.WithLabelValues(primitive).Inc()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
