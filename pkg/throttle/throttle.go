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

// Package throttle limits authentication attempts per client and purpose.
//
// Each (tenant, purpose, email hash) key gets a token bucket for request
// rate and a consecutive-failure counter. Reaching MaxFailures locks the key
// for LockoutDuration. Decisions carry the delay a caller must wait, so
// responses can report it without revealing anything else.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Key identifies a throttled subject.
type Key struct {
	EmailHash string
	Purpose   string
	TenantID  string
}

func (k Key) String() string {
	return k.TenantID + "|" + k.Purpose + "|" + k.EmailHash
}

// Decision is the outcome of CheckThrottle.
type Decision struct {
	Allowed        bool
	RetryAfter     time.Duration
	FailedAttempts int
}

// RetryAfterMs returns RetryAfter in whole milliseconds, rounded up.
func (d Decision) RetryAfterMs() int64 {
	ms := d.RetryAfter / time.Millisecond
	if d.RetryAfter%time.Millisecond != 0 {
		ms++
	}
	return int64(ms)
}

// Config holds throttle configuration.
type Config struct {
	// Enabled controls whether throttling is active.
	Enabled bool

	// RequestsPerMinute sets the sustained rate per key.
	RequestsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to RequestsPerMinute.
	Burst int

	// MaxFailures is the number of consecutive failures that triggers a
	// lockout. Zero disables lockouts.
	MaxFailures int

	// LockoutDuration is how long a key stays locked.
	// Defaults to 15 minutes.
	LockoutDuration time.Duration

	// CleanupInterval controls how often idle keys are dropped.
	// Defaults to 10 minutes.
	CleanupInterval time.Duration

	// MaxIdle is how long a key can be idle before cleanup.
	// Defaults to 30 minutes.
	MaxIdle time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	limiter     *rate.Limiter
	failures    int
	lockedUntil time.Time
	lastSeen    time.Time
}

// Limiter is an in-memory throttle. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	rate        rate.Limit
	burst       int
	enabled     bool
	maxFailures int
	lockout     time.Duration
	now         func() time.Time

	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// New creates a throttle with the given configuration. A nil config returns
// a disabled throttle that allows everything.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst == 0 {
		burst = config.RequestsPerMinute
	}
	lockout := config.LockoutDuration
	if lockout == 0 {
		lockout = 15 * time.Minute
	}
	cleanupInterval := config.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}
	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	l := &Limiter{
		entries:         make(map[string]*entry),
		rate:            rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:           burst,
		enabled:         config.Enabled,
		maxFailures:     config.MaxFailures,
		lockout:         lockout,
		now:             now,
		cleanupInterval: cleanupInterval,
		maxIdle:         maxIdle,
		stopCleanup:     make(chan struct{}),
	}

	if config.Enabled {
		go l.cleanupWorker()
	}
	return l
}

// getEntry returns the state for key, creating it on first use.
// Callers must hold l.mu.
func (l *Limiter) getEntry(key Key, now time.Time) *entry {
	id := key.String()
	e, ok := l.entries[id]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[id] = e
	}
	e.lastSeen = now
	return e
}

// CheckThrottle consumes one attempt for key if allowed.
func (l *Limiter) CheckThrottle(ctx context.Context, key Key) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !l.enabled {
		return Decision{Allowed: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.getEntry(key, now)

	if now.Before(e.lockedUntil) {
		return Decision{RetryAfter: e.lockedUntil.Sub(now), FailedAttempts: e.failures}, nil
	}

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{RetryAfter: time.Minute, FailedAttempts: e.failures}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay, FailedAttempts: e.failures}, nil
	}
	return Decision{Allowed: true, FailedAttempts: e.failures}, nil
}

// RecordFailure counts a failed attempt for key and starts a lockout when
// MaxFailures is reached.
func (l *Limiter) RecordFailure(ctx context.Context, key Key) {
	if !l.enabled {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.getEntry(key, now)
	e.failures++
	if l.maxFailures > 0 && e.failures >= l.maxFailures {
		e.lockedUntil = now.Add(l.lockout)
	}
}

// Reset clears the failure count and any lockout for key.
func (l *Limiter) Reset(ctx context.Context, key Key) {
	if !l.enabled {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key.String()]; ok {
		e.failures = 0
		e.lockedUntil = time.Time{}
	}
}

// cleanupWorker periodically removes idle keys from memory.
func (l *Limiter) cleanupWorker() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup removes keys that are idle and not locked.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > l.maxIdle && !now.Before(e.lockedUntil) {
			delete(l.entries, id)
		}
	}
}

// Stop stops the cleanup worker. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// Stats returns current throttle statistics.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked := 0
	now := l.now()
	for _, e := range l.entries {
		if now.Before(e.lockedUntil) {
			locked++
		}
	}
	return map[string]interface{}{
		"enabled":      l.enabled,
		"active_keys":  len(l.entries),
		"locked_keys":  locked,
		"rate_per_min": float64(l.rate) * 60,
		"burst":        l.burst,
		"max_failures": l.maxFailures,
	}
}
