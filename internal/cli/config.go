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

package cli

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-tunnelkeys/internal/config"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/logger"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/challenge"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/metrics"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/throttle"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
)

// Config holds CLI flag values and the settings loaded from the
// configuration file.
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool

	settings *config.Config
	log      logger.Logger
	scheme   kem.Scheme
}

// NewConfig returns a Config with default flag values.
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		Verbose:      false,
	}
}

// Load reads the configuration file, or the defaults when none is set, and
// builds the shared components. Log output goes to stderr.
func (c *Config) Load(stderr io.Writer) error {
	if c.OutputFormat != string(OutputFormatText) && c.OutputFormat != string(OutputFormatJSON) {
		return fmt.Errorf("unknown output format: %s", c.OutputFormat)
	}

	settings, err := config.LoadOrDefault(c.ConfigFile)
	if err != nil {
		return err
	}
	if c.Verbose {
		settings.Logging.Level = "debug"
	}

	scheme, err := settings.Scheme()
	if err != nil {
		return err
	}
	log, err := settings.NewLogger(stderr)
	if err != nil {
		return err
	}

	if settings.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	c.settings = settings
	c.scheme = scheme
	c.log = log
	return nil
}

// Settings returns the loaded configuration.
func (c *Config) Settings() *config.Config {
	if c.settings == nil {
		c.settings = config.Default()
	}
	return c.settings
}

// Scheme returns the configured KEM.
func (c *Config) Scheme() kem.Scheme {
	if c.scheme == nil {
		c.scheme = kem.Default()
	}
	return c.scheme
}

// Logger returns the configured logger.
func (c *Config) Logger() logger.Logger {
	if c.log == nil {
		c.log = logger.NewNoOp()
	}
	return c.log
}

// NewDistributor builds a Distributor from the loaded settings.
func (c *Config) NewDistributor() *tunnel.Distributor {
	return tunnel.NewDistributor(&tunnel.Config{
		Scheme: c.Scheme(),
		Cipher: c.Settings().NewCipher(),
		Logger: c.Logger(),
	})
}

// NewProtocol builds a challenge Protocol over in-memory collaborators.
// The caller must Stop the returned limiter.
func (c *Config) NewProtocol(tunnels challenge.TunnelLookup) (*challenge.Protocol, *throttle.Limiter, error) {
	limiter := throttle.New(c.Settings().ThrottleLimiterConfig())
	p, err := challenge.NewProtocol(&challenge.Config{
		Scheme:   c.Scheme(),
		Store:    challenge.NewMemoryStore(),
		Throttle: limiter,
		Tunnels:  tunnels,
		TTL:      c.Settings().Challenge.TTL,
		Logger:   c.Logger(),

		ClientsHoldPrivateKeys: c.Settings().Challenge.ClientsHoldPrivateKeys,
	})
	if err != nil {
		limiter.Stop()
		return nil, nil, err
	}
	return p, limiter, nil
}
