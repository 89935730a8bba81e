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

	"github.com/jeremyhahn/go-tunnelkeys/pkg/crypto/secretsharing"
)

func newShamirCmd(cfg *Config) *cobra.Command {
	shamirCmd := &cobra.Command{
		Use:   "shamir",
		Short: "Shamir secret sharing over GF(256)",
	}
	shamirCmd.AddCommand(newShamirSplitCmd(cfg))
	shamirCmd.AddCommand(newShamirCombineCmd(cfg))
	return shamirCmd
}

func newShamirSplitCmd(cfg *Config) *cobra.Command {
	var (
		secretHex string
		threshold int
		total     int
	)
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a secret into shares",
		Long: `Split a hex encoded secret into --shares shares, any --threshold of
which recover it. Each share is printed as hex of x || y.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := decodeHexFlag("secret", secretHex)
			if err != nil {
				return err
			}
			defer clear(secret)

			shares, err := secretsharing.Split(secret, threshold, total)
			if err != nil {
				return err
			}

			encoded := make([]string, len(shares))
			for i := range shares {
				if encoded[i], err = shares[i].EncodeHex(); err != nil {
					return err
				}
				shares[i].Wipe()
			}
			printVerbose(cfg, cmd.ErrOrStderr(), "split %d bytes into %d-of-%d shares", len(secret), threshold, total)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintList("shares", encoded)
		},
	}
	cmd.Flags().StringVar(&secretHex, "secret", "", "secret to split (hex)")
	cmd.Flags().IntVarP(&threshold, "threshold", "k", 2, "shares required to recover")
	cmd.Flags().IntVarP(&total, "shares", "n", 3, "shares to produce")
	return cmd
}

func newShamirCombineCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "combine SHARE SHARE [SHARE...]",
		Short: "Recover a secret from shares",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares := make([]secretsharing.Share, len(args))
			for i, arg := range args {
				share, err := secretsharing.DecodeHex(arg)
				if err != nil {
					return fmt.Errorf("share %d: %w", i+1, err)
				}
				shares[i] = share
			}

			secret, err := secretsharing.Combine(shares)
			if err != nil {
				return err
			}
			defer clear(secret)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintValue("secret", hex.EncodeToString(secret))
		},
	}
}
