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

package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/kdf"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/logger"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/challenge"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/aead"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/throttle"
)

// Config represents the complete tunnelkeys configuration
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	KEM       KEMConfig        `yaml:"kem"`
	Challenge ChallengeConfig  `yaml:"challenge"`
	Throttle  ThrottleConfig   `yaml:"throttle"`
	Argon2    kdf.Argon2Params `yaml:"argon2"`
	AEAD      AEADConfig       `yaml:"aead"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KEMConfig selects the key encapsulation mechanism
type KEMConfig struct {
	Scheme string `yaml:"scheme"`
}

// ChallengeConfig controls challenge lifetime and decoy shape.
// ClientsHoldPrivateKeys must match how tunnels are created: set it when
// clients keep their own KEM private key and tunnels carry no share.
type ChallengeConfig struct {
	TTL                    time.Duration `yaml:"ttl"`
	ClientsHoldPrivateKeys bool          `yaml:"clients_hold_private_keys"`
}

// ThrottleConfig controls per-client throttling of challenge operations
type ThrottleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RequestsPerMin  int           `yaml:"requests_per_min"`
	Burst           int           `yaml:"burst"`
	MaxFailures     int           `yaml:"max_failures"`
	LockoutDuration time.Duration `yaml:"lockout"`
}

// AEADConfig controls the symmetric cipher
type AEADConfig struct {
	NonceTracking bool `yaml:"nonce_tracking"`
}

// MetricsConfig controls prometheus collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a valid configuration with production defaults
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		KEM:     KEMConfig{Scheme: kem.AlgorithmMLKEM768},
		Challenge: ChallengeConfig{
			TTL: challenge.DefaultTTL,
		},
		Throttle: ThrottleConfig{
			Enabled:         true,
			RequestsPerMin:  10,
			Burst:           5,
			MaxFailures:     5,
			LockoutDuration: 15 * time.Minute,
		},
		Argon2:  *kdf.DefaultArgon2Params(),
		AEAD:    AEADConfig{NonceTracking: true},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it is set, otherwise the defaults with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("TUNNELKEYS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("TUNNELKEYS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if scheme := os.Getenv("TUNNELKEYS_KEM_SCHEME"); scheme != "" {
		cfg.KEM.Scheme = scheme
	}
	if ttl := os.Getenv("TUNNELKEYS_CHALLENGE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			log.Printf("Warning: invalid TUNNELKEYS_CHALLENGE_TTL value %q, using %s: %v",
				ttl, cfg.Challenge.TTL, err)
		} else {
			cfg.Challenge.TTL = d
		}
	}
	if enabled := os.Getenv("TUNNELKEYS_THROTTLE_ENABLED"); enabled != "" {
		b, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid TUNNELKEYS_THROTTLE_ENABLED value %q, using %t: %v",
				enabled, cfg.Throttle.Enabled, err)
		} else {
			cfg.Throttle.Enabled = b
		}
	}
	if rpm := os.Getenv("TUNNELKEYS_THROTTLE_REQUESTS_PER_MIN"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil {
			log.Printf("Warning: invalid TUNNELKEYS_THROTTLE_REQUESTS_PER_MIN value %q, using %d: %v",
				rpm, cfg.Throttle.RequestsPerMin, err)
		} else {
			cfg.Throttle.RequestsPerMin = n
		}
	}
	if failures := os.Getenv("TUNNELKEYS_THROTTLE_MAX_FAILURES"); failures != "" {
		n, err := strconv.Atoi(failures)
		if err != nil {
			log.Printf("Warning: invalid TUNNELKEYS_THROTTLE_MAX_FAILURES value %q, using %d: %v",
				failures, cfg.Throttle.MaxFailures, err)
		} else {
			cfg.Throttle.MaxFailures = n
		}
	}
	if memory := os.Getenv("TUNNELKEYS_ARGON2_MEMORY_KIB"); memory != "" {
		n, err := strconv.ParseUint(memory, 10, 32)
		if err != nil {
			log.Printf("Warning: invalid TUNNELKEYS_ARGON2_MEMORY_KIB value %q, using %d: %v",
				memory, cfg.Argon2.MemoryKiB, err)
		} else {
			cfg.Argon2.MemoryKiB = uint32(n)
		}
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if _, err := kem.New(c.KEM.Scheme); err != nil {
		return fmt.Errorf("invalid kem scheme %q (available: %s)", c.KEM.Scheme, strings.Join(kem.Names(), ", "))
	}

	if c.Challenge.TTL <= 0 {
		return fmt.Errorf("challenge ttl must be positive")
	}

	if c.Throttle.Enabled {
		if c.Throttle.RequestsPerMin < 1 {
			return fmt.Errorf("throttle requests_per_min must be at least 1")
		}
		if c.Throttle.Burst < 0 || c.Throttle.MaxFailures < 0 {
			return fmt.Errorf("throttle burst and max_failures must not be negative")
		}
		if c.Throttle.LockoutDuration < 0 {
			return fmt.Errorf("throttle lockout must not be negative")
		}
	}

	if err := c.Argon2.Validate(); err != nil {
		return fmt.Errorf("argon2: %w", err)
	}

	return nil
}

// Scheme returns the configured KEM.
func (c *Config) Scheme() (kem.Scheme, error) {
	return kem.New(c.KEM.Scheme)
}

// NewLogger builds the configured logger writing to out.
func (c *Config) NewLogger(out io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: strings.ToLower(c.Logging.Format),
		Output: out,
	}), nil
}

// NewCipher builds the AEAD with nonce tracking as configured.
func (c *Config) NewCipher() *aead.AESGCM {
	return aead.NewAESGCM(&aead.Options{NonceTracker: aead.NewNonceTracker(c.AEAD.NonceTracking)})
}

// ThrottleLimiterConfig converts the throttle section for throttle.New.
func (c *Config) ThrottleLimiterConfig() *throttle.Config {
	return &throttle.Config{
		Enabled:           c.Throttle.Enabled,
		RequestsPerMinute: c.Throttle.RequestsPerMin,
		Burst:             c.Throttle.Burst,
		MaxFailures:       c.Throttle.MaxFailures,
		LockoutDuration:   c.Throttle.LockoutDuration,
	}
}
