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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PINEnv holds the client PIN for non-interactive use.
const PINEnv = "TUNNELKEYS_PIN"

// test seams for the terminal
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// readPIN returns the client PIN from PINEnv, from the terminal without
// echo, or from the first line of standard input. PINs are never taken
// from arguments, which would expose them in the process list. An empty
// result is left for the caller to reject.
func readPIN(cmd *cobra.Command) ([]byte, error) {
	if pin := os.Getenv(PINEnv); pin != "" {
		return []byte(pin), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter PIN: ")
		pin, err := readPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return nil, fmt.Errorf("failed to read PIN: %w", err)
		}
		return pin, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read PIN: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
