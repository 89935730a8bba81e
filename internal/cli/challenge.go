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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/challenge"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/correlation"
	"github.com/jeremyhahn/go-tunnelkeys/pkg/tunnel"
)

func newChallengeCmd(cfg *Config) *cobra.Command {
	challengeCmd := &cobra.Command{
		Use:   "challenge",
		Short: "Challenge-response authentication",
	}
	challengeCmd.AddCommand(newChallengeSelftestCmd(cfg))
	return challengeCmd
}

// selftestPIN is a throwaway PIN for the in-memory client created by
// "challenge selftest". It never protects a stored tunnel.
const selftestPIN = "123456"

func newChallengeSelftestCmd(cfg *Config) *cobra.Command {
	var (
		tenantID string
		email    string
		pin      string
	)
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run a full challenge exchange in memory",
		Long: `Onboard a client, issue a challenge, answer it from the PIN and verify
the response. Also checks that a replayed response and a decoy challenge
for an unknown client are rejected.

The client exists only for the duration of the command, so its PIN is a
test value passed as a flag rather than a secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := correlation.WithCorrelationID(cmd.Context(), correlation.NewID())
			params := cfg.Settings().Argon2
			d := cfg.NewDistributor()
			registry := tunnel.NewMemoryRegistry()

			onboarded, err := d.Onboard(ctx, &tunnel.OnboardRequest{
				TenantID: tenantID,
				Email:    email,
				PIN:      []byte(pin),
				Argon2:   &params,
			})
			if err != nil {
				return err
			}
			clear(onboarded.TunnelKey)
			if err := registry.Save(ctx, onboarded.CreateResult); err != nil {
				return err
			}

			protocol, limiter, err := cfg.NewProtocol(registry)
			if err != nil {
				return err
			}
			defer limiter.Stop()

			emailHash := tunnel.EmailHash(email)
			steps := make(map[string]string)

			issued, err := protocol.Issue(ctx, tenantID, emailHash)
			if err != nil {
				return fmt.Errorf("issue: %w", err)
			}
			steps["1-issue"] = "ok " + issued.ID

			clientShare, err := tunnel.DerivePINShare([]byte(pin),
				tunnel.ClientIdentifier(tenantID, emailHash),
				tunnel.PurposePrivateKey,
				d.Scheme().PrivateKeySize(),
				&params)
			if err != nil {
				return err
			}
			response, err := challenge.Respond(d.Scheme(), issued.Challenge, issued.PrivateKeyShare, clientShare)
			clear(clientShare)
			if err != nil {
				return fmt.Errorf("respond: %w", err)
			}
			steps["2-respond"] = "ok"

			if err := protocol.Verify(ctx, tenantID, emailHash, issued.ID, response); err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			steps["3-verify"] = "ok"

			err = protocol.Verify(ctx, tenantID, emailHash, issued.ID, response)
			if !errors.Is(err, challenge.ErrNotFound) {
				return fmt.Errorf("replay was not rejected: %v", err)
			}
			steps["4-replay-rejected"] = "ok"

			decoy, err := protocol.Issue(ctx, tenantID, tunnel.EmailHash("unknown."+email))
			if err != nil {
				return fmt.Errorf("decoy: %w", err)
			}
			if len(decoy.Challenge) != len(issued.Challenge) || len(decoy.PrivateKeyShare) != len(issued.PrivateKeyShare) {
				return fmt.Errorf("decoy challenge shape differs from a real one")
			}
			steps["5-decoy-indistinct"] = "ok"

			printVerbose(cfg, cmd.ErrOrStderr(), "challenge blob is %d hex characters", len(issued.Challenge))
			return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSteps(steps)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "demo", "tenant id")
	cmd.Flags().StringVar(&email, "email", "client@example.com", "client email address")
	cmd.Flags().StringVar(&pin, "test-pin", selftestPIN, "throwaway PIN for the in-memory test client")
	return cmd
}
