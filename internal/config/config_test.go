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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestDefault_Valid tests that the defaults pass validation
func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v, want nil", err)
	}
	if cfg.KEM.Scheme != kem.AlgorithmMLKEM768 {
		t.Errorf("KEM.Scheme = %v, want %v", cfg.KEM.Scheme, kem.AlgorithmMLKEM768)
	}
	if cfg.Challenge.TTL != 5*time.Minute {
		t.Errorf("Challenge.TTL = %v, want 5m", cfg.Challenge.TTL)
	}
	if cfg.Challenge.ClientsHoldPrivateKeys {
		t.Error("Challenge.ClientsHoldPrivateKeys = true, want false")
	}
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"
  format: "json"

kem:
  scheme: "ML-KEM-768"

challenge:
  ttl: 90s
  clients_hold_private_keys: true

throttle:
  enabled: true
  requests_per_min: 30
  burst: 10
  max_failures: 3
  lockout: 5m

argon2:
  time: 2
  memory_kib: 19456
  threads: 1

aead:
  nonce_tracking: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %v, want json", cfg.Logging.Format)
	}
	if cfg.Challenge.TTL != 90*time.Second {
		t.Errorf("Challenge.TTL = %v, want 90s", cfg.Challenge.TTL)
	}
	if !cfg.Challenge.ClientsHoldPrivateKeys {
		t.Error("Challenge.ClientsHoldPrivateKeys = false, want true")
	}
	if cfg.Throttle.RequestsPerMin != 30 || cfg.Throttle.Burst != 10 || cfg.Throttle.MaxFailures != 3 {
		t.Errorf("Throttle = %+v, want 30/10/3", cfg.Throttle)
	}
	if cfg.Throttle.LockoutDuration != 5*time.Minute {
		t.Errorf("Throttle.LockoutDuration = %v, want 5m", cfg.Throttle.LockoutDuration)
	}
	if cfg.Argon2.Time != 2 || cfg.Argon2.MemoryKiB != 19456 || cfg.Argon2.Threads != 1 {
		t.Errorf("Argon2 = %+v, want 2/19456/1", cfg.Argon2)
	}
	if cfg.AEAD.NonceTracking {
		t.Error("AEAD.NonceTracking = true, want false")
	}
	// unset sections keep their defaults
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want default true")
	}
}

// TestLoad_FileNotFound tests loading a non-existent file
func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}

// TestLoad_InvalidYAML tests loading malformed YAML
func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "logging: [unterminated")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

// TestLoad_EnvOverrides tests environment variable overrides
func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	t.Setenv("TUNNELKEYS_LOG_LEVEL", "warn")
	t.Setenv("TUNNELKEYS_LOG_FORMAT", "json")
	t.Setenv("TUNNELKEYS_CHALLENGE_TTL", "2m")
	t.Setenv("TUNNELKEYS_THROTTLE_ENABLED", "false")
	t.Setenv("TUNNELKEYS_THROTTLE_MAX_FAILURES", "9")
	t.Setenv("TUNNELKEYS_ARGON2_MEMORY_KIB", "32768")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %v, want warn", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %v, want json", cfg.Logging.Format)
	}
	if cfg.Challenge.TTL != 2*time.Minute {
		t.Errorf("Challenge.TTL = %v, want 2m", cfg.Challenge.TTL)
	}
	if cfg.Throttle.Enabled {
		t.Error("Throttle.Enabled = true, want false")
	}
	if cfg.Throttle.MaxFailures != 9 {
		t.Errorf("Throttle.MaxFailures = %v, want 9", cfg.Throttle.MaxFailures)
	}
	if cfg.Argon2.MemoryKiB != 32768 {
		t.Errorf("Argon2.MemoryKiB = %v, want 32768", cfg.Argon2.MemoryKiB)
	}
}

// TestLoad_InvalidEnvIgnored tests that malformed overrides keep the file value
func TestLoad_InvalidEnvIgnored(t *testing.T) {
	path := writeConfig(t, "challenge:\n  ttl: 1m\n")
	t.Setenv("TUNNELKEYS_CHALLENGE_TTL", "soon")
	t.Setenv("TUNNELKEYS_THROTTLE_REQUESTS_PER_MIN", "many")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Challenge.TTL != time.Minute {
		t.Errorf("Challenge.TTL = %v, want 1m", cfg.Challenge.TTL)
	}
	if cfg.Throttle.RequestsPerMin != Default().Throttle.RequestsPerMin {
		t.Errorf("Throttle.RequestsPerMin = %v, want default", cfg.Throttle.RequestsPerMin)
	}
}

// TestLoadOrDefault tests the empty path fallback
func TestLoadOrDefault(t *testing.T) {
	t.Setenv("TUNNELKEYS_LOG_LEVEL", "error")
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v, want nil", err)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %v, want error", cfg.Logging.Level)
	}
}

// TestValidate tests validation failures
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "fatal" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "console" }, "invalid log format"},
		{"kem scheme", func(c *Config) { c.KEM.Scheme = "Kyber-512" }, "invalid kem scheme"},
		{"challenge ttl", func(c *Config) { c.Challenge.TTL = 0 }, "challenge ttl"},
		{"throttle rate", func(c *Config) { c.Throttle.RequestsPerMin = 0 }, "requests_per_min"},
		{"throttle failures", func(c *Config) { c.Throttle.MaxFailures = -1 }, "must not be negative"},
		{"throttle lockout", func(c *Config) { c.Throttle.LockoutDuration = -time.Second }, "lockout"},
		{"argon2 memory", func(c *Config) { c.Argon2.MemoryKiB = 1 }, "argon2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("disabled throttle skips rate checks", func(t *testing.T) {
		cfg := Default()
		cfg.Throttle.Enabled = false
		cfg.Throttle.RequestsPerMin = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

// TestBuilders tests the component constructors
func TestBuilders(t *testing.T) {
	cfg := Default()

	scheme, err := cfg.Scheme()
	if err != nil {
		t.Fatalf("Scheme() error = %v", err)
	}
	if scheme.CiphertextSize() != 1088 {
		t.Errorf("CiphertextSize() = %d, want 1088", scheme.CiphertextSize())
	}

	if _, err := cfg.NewLogger(os.Stderr); err != nil {
		t.Errorf("NewLogger() error = %v", err)
	}
	if cfg.NewCipher() == nil {
		t.Error("NewCipher() = nil")
	}

	lc := cfg.ThrottleLimiterConfig()
	if lc.RequestsPerMinute != cfg.Throttle.RequestsPerMin || lc.LockoutDuration != cfg.Throttle.LockoutDuration {
		t.Errorf("ThrottleLimiterConfig() = %+v, want values from %+v", lc, cfg.Throttle)
	}
}
