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
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the tunnelctl command tree. Each call returns a
// fresh tree with its own flag state.
func NewRootCommand() *cobra.Command {
	cfg := NewConfig()

	rootCmd := &cobra.Command{
		Use:   "tunnelctl",
		Short: "go-tunnelkeys CLI - client tunnel key distribution tool",
		Long: `tunnelctl exercises the client tunnel protocol locally: post-quantum
key generation, Shamir secret sharing over GF(256), tunnel onboarding
with PIN-derived shares, appointment sealing and the challenge-response
exchange.

All operations run in-process; nothing is persisted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (defaults apply when unset)")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(newVersionCmd(cfg))
	rootCmd.AddCommand(newKeygenCmd(cfg))
	rootCmd.AddCommand(newShamirCmd(cfg))
	rootCmd.AddCommand(newTunnelCmd(cfg))
	rootCmd.AddCommand(newAppointmentCmd(cfg))
	rootCmd.AddCommand(newChallengeCmd(cfg))
	return rootCmd
}

// Execute runs the CLI with os.Args, printing errors in the selected
// output format.
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err != nil {
		format, _ := rootCmd.PersistentFlags().GetString("output")
		_ = NewPrinter(format, os.Stderr).PrintError(err) // best-effort
	}
	return err
}

func printVerbose(cfg *Config, w io.Writer, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(w, "[VERBOSE] "+format+"\n", args...)
	}
}
