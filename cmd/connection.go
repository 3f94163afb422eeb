// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

// GetPassword retrieves password from config, environment or prompts user
func GetPassword() (string, error) {
	if cfg.Transport.Password != "" {
		return cfg.Transport.Password, nil
	}
	if pw := os.Getenv("MFMODE_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a WebSocket or serial link based on settings. With
// allowTerminal and neither configured, stdin/stdout is used.
func OpenConnection(allowTerminal bool) (*transport.Link, error) {
	tc := cfg.Transport

	if tc.URL != "" {
		password := ""
		if tc.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return transport.OpenWebSocket(tc.URL, tc.Username, password, tc.NoSSLVerify)
	}

	if tc.Port != "" {
		return transport.OpenSerial(tc.Port, tc.Baud)
	}

	if allowTerminal {
		return transport.OpenTerminal()
	}

	ports, _ := transport.ListSerialPorts()
	if len(ports) > 0 {
		return nil, fmt.Errorf("either --port or --url must be specified (available ports: %s)", strings.Join(ports, ", "))
	}
	return nil, fmt.Errorf("either --port or --url must be specified")
}
