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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/correlation"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
)

// tunnelRecord is the document written by "tunnel onboard" and read by
// "tunnel unlock".
type tunnelRecord struct {
	Tunnel      *tunnel.ClientTunnel   `json:"tunnel"`
	StaffShares []tunnel.StaffKeyShare `json:"staffShares"`
	TunnelKey   string                 `json:"tunnelKey,omitempty"`
}

func newTunnelCmd(cfg *Config) *cobra.Command {
	tunnelCmd := &cobra.Command{
		Use:   "tunnel",
		Short: "Client tunnel operations",
	}
	tunnelCmd.AddCommand(newTunnelOnboardCmd(cfg))
	tunnelCmd.AddCommand(newTunnelUnlockCmd(cfg))
	return tunnelCmd
}

func newTunnelOnboardCmd(cfg *Config) *cobra.Command {
	var (
		tenantID string
		email    string
		staff    []string
		outPath  string
		omitKey  bool
	)
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create a tunnel for a new client",
		Long: `Generate the client's KEM key pair and tunnel key, split both against
the PIN and wrap the tunnel key for the client and each --staff recipient.

Staff recipients are given as USER_ID=PUBLIC_KEY_HEX. The PIN is read
from $TUNNELKEYS_PIN, the terminal or the first line of standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients, err := parseStaff(staff)
			if err != nil {
				return err
			}
			pin, err := readPIN(cmd)
			if err != nil {
				return err
			}
			defer clear(pin)

			params := cfg.Settings().Argon2
			d := cfg.NewDistributor()
			ctx := correlation.WithCorrelationID(cmd.Context(), correlation.NewID())
			result, err := d.Onboard(ctx, &tunnel.OnboardRequest{
				TenantID: tenantID,
				Email:    email,
				PIN:      pin,
				Staff:    recipients,
				Argon2:   &params,
			})
			if err != nil {
				return err
			}
			defer clear(result.TunnelKey)

			record := tunnelRecord{Tunnel: result.Tunnel, StaffShares: result.StaffShares}
			if !omitKey {
				record.TunnelKey = hex.EncodeToString(result.TunnelKey)
			}
			printVerbose(cfg, cmd.ErrOrStderr(), "created tunnel %s with %d staff shares", result.Tunnel.ID, len(result.StaffShares))

			if outPath == "" {
				return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintDocument(record)
			}
			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0600); err != nil {
				return fmt.Errorf("failed to write tunnel record: %w", err)
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSuccess(
				fmt.Sprintf("tunnel %s written to %s", result.Tunnel.ID, outPath))
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&email, "email", "", "client email address")
	cmd.Flags().StringArrayVar(&staff, "staff", nil, "staff recipient USER_ID=PUBLIC_KEY_HEX (repeatable)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the tunnel record to a file")
	cmd.Flags().BoolVar(&omitKey, "omit-key", false, "leave the tunnel key out of the record")
	return cmd
}

func newTunnelUnlockCmd(cfg *Config) *cobra.Command {
	var recordPath string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Recover the tunnel key from a tunnel record and PIN",
		Long: `Rebuild the client's KEM private key from the PIN and open the tunnel
key. The PIN is read from $TUNNELKEYS_PIN, the terminal or the first line
of standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readTunnelRecord(recordPath)
			if err != nil {
				return err
			}
			pin, err := readPIN(cmd)
			if err != nil {
				return err
			}
			defer clear(pin)

			params := cfg.Settings().Argon2
			tunnelKey, privateKey, err := cfg.NewDistributor().UnlockWithPIN(record.Tunnel, pin, &params)
			if err != nil {
				return err
			}
			defer clear(tunnelKey)
			defer clear(privateKey)
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintValue("tunnelKey", hex.EncodeToString(tunnelKey))
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "tunnel record written by onboard")
	return cmd
}

func readTunnelRecord(path string) (*tunnelRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("--record is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tunnel record: %w", err)
	}
	var record tunnelRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse tunnel record: %w", err)
	}
	if record.Tunnel == nil {
		return nil, fmt.Errorf("tunnel record has no tunnel")
	}
	return &record, nil
}

func parseStaff(values []string) ([]tunnel.StaffRecipient, error) {
	recipients := make([]tunnel.StaffRecipient, 0, len(values))
	for _, v := range values {
		userID, keyHex, ok := strings.Cut(v, "=")
		if !ok || userID == "" {
			return nil, fmt.Errorf("invalid --staff %q, want USER_ID=PUBLIC_KEY_HEX", v)
		}
		publicKey, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid --staff %q: public key must be hex encoded", userID)
		}
		recipients = append(recipients, tunnel.StaffRecipient{UserID: userID, PublicKey: publicKey})
	}
	return recipients, nil
}
