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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
)

func newAppointmentCmd(cfg *Config) *cobra.Command {
	appointmentCmd := &cobra.Command{
		Use:   "appointment",
		Short: "Seal and open appointment payloads under a tunnel key",
	}
	appointmentCmd.AddCommand(newAppointmentSealCmd(cfg))
	appointmentCmd.AddCommand(newAppointmentOpenCmd(cfg))
	return appointmentCmd
}

func newAppointmentSealCmd(cfg *Config) *cobra.Command {
	var (
		keyHex string
		data   string
		inPath string
	)
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt an appointment payload",
		Long: `Encrypt --data, or the contents of --in, with AES-256-GCM under the
hex encoded tunnel --key. Prints the encrypted appointment as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := decodeHexFlag("key", keyHex)
			if err != nil {
				return err
			}
			defer clear(key)

			plaintext := []byte(data)
			if inPath != "" {
				if plaintext, err = os.ReadFile(inPath); err != nil {
					return fmt.Errorf("failed to read payload: %w", err)
				}
			}

			appt, err := cfg.NewDistributor().SealAppointment(key, plaintext)
			if err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintDocument(appt)
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "tunnel key (hex)")
	cmd.Flags().StringVar(&data, "data", "", "payload to encrypt")
	cmd.Flags().StringVar(&inPath, "in", "", "read the payload from a file")
	return cmd
}

func newAppointmentOpenCmd(cfg *Config) *cobra.Command {
	var (
		keyHex string
		inPath string
	)
	cmd := &cobra.Command{
		Use:   "open [APPOINTMENT_JSON]",
		Short: "Decrypt an appointment payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := decodeHexFlag("key", keyHex)
			if err != nil {
				return err
			}
			defer clear(key)

			var raw []byte
			switch {
			case inPath != "":
				if raw, err = os.ReadFile(inPath); err != nil {
					return fmt.Errorf("failed to read appointment: %w", err)
				}
			case len(args) == 1:
				raw = []byte(args[0])
			default:
				return fmt.Errorf("an appointment argument or --in is required")
			}

			var appt tunnel.EncryptedAppointment
			if err := json.Unmarshal(raw, &appt); err != nil {
				return fmt.Errorf("failed to parse appointment: %w", err)
			}
			plaintext, err := cfg.NewDistributor().OpenAppointment(key, &appt)
			if err != nil {
				return err
			}
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintValue("plaintext", string(plaintext))
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "tunnel key (hex)")
	cmd.Flags().StringVar(&inPath, "in", "", "read the appointment JSON from a file")
	return cmd
}
