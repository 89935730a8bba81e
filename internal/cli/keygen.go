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
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeygenCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a KEM key pair",
		Long: `Generate a key pair for the configured KEM (ML-KEM-768 by default).
Both keys are printed hex encoded. The private key is secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme := cfg.Scheme()
			publicKey, privateKey, err := scheme.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("failed to generate key pair: %w", err)
			}
			defer clear(privateKey)

			printVerbose(cfg, cmd.ErrOrStderr(), "generated %s key pair", scheme.Name())
			printer := NewPrinter(cfg.OutputFormat, cmd.OutOrStdout())
			return printer.PrintFields("Key Pair", []string{"scheme", "publicKey", "privateKey"},
				map[string]interface{}{
					"scheme":     scheme.Name(),
					"publicKey":  hex.EncodeToString(publicKey),
					"privateKey": hex.EncodeToString(privateKey),
				})
		},
	}
}

func decodeHexFlag(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be hex encoded: %w", name, err)
	}
	return b, nil
}
