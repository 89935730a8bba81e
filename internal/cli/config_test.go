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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/kem"
)

// fastConfig writes a configuration with minimum Argon2 costs.
func fastConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunnelkeys.yaml")
	content := `
logging:
  level: error
argon2:
  time: 1
  memory_kib: 8192
  threads: 1
metrics:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

// executeWithInput runs the CLI with input on standard input and no
// PIN in the environment.
func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(PINEnv, "")
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(input))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.ConfigFile)

	// accessors fall back to defaults before Load
	assert.Equal(t, kem.AlgorithmMLKEM768, cfg.Scheme().Name())
	assert.NotNil(t, cfg.Logger())
	assert.NotNil(t, cfg.Settings())
}

func TestConfig_Load(t *testing.T) {
	var stderr bytes.Buffer

	cfg := NewConfig()
	cfg.ConfigFile = fastConfig(t)
	require.NoError(t, cfg.Load(&stderr))
	assert.Equal(t, uint32(8192), cfg.Settings().Argon2.MemoryKiB)

	cfg = NewConfig()
	cfg.OutputFormat = "table"
	assert.Error(t, cfg.Load(&stderr))

	cfg = NewConfig()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, cfg.Load(&stderr))
}

func TestConfig_Verbose(t *testing.T) {
	cfg := NewConfig()
	cfg.Verbose = true
	cfg.ConfigFile = fastConfig(t)
	require.NoError(t, cfg.Load(&bytes.Buffer{}))
	assert.Equal(t, "debug", cfg.Settings().Logging.Level)
}

func TestConfig_NewProtocol(t *testing.T) {
	cfg := NewConfig()
	_, _, err := cfg.NewProtocol(nil)
	assert.Error(t, err)
}
