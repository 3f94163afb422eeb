// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

var termCmd = &cobra.Command{
	Use:   "term",
	Short: "Interactive terminal for a device's factory-test console",
	Long: `Attach an interactive terminal to a device running the factory-test console.

Device output scrolls in the upper pane (PgUp/PgDn). Lines typed at the
prompt are sent with a carriage return when Enter is pressed. Ctrl+S sends
the "###" sentinel for a host-driven session. Once the session banner has
been seen, a summary of serial number, application CRC, MAC and BLE scan
is shown above the output.

Supports both serial and WebSocket connections.`,
	RunE: runTerm,
}

func init() {
	rootCmd.AddCommand(termCmd)
}

func runTerm(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection(false)
	if err != nil {
		return err
	}
	defer link.Close()

	m := initialTermModel(link, link.Info())
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	go readerLoop(link, p, done)

	_, err = p.Run()
	close(done)
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop forwards device output to the TUI until done is closed or the
// link fails.
func readerLoop(link transport.Transport, p *tea.Program, done <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := link.Recv(buf, 100*time.Millisecond)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			p.Send(deviceDataMsg(data))
		}
		if err != nil && !errors.Is(err, transport.ErrTimeout) {
			p.Send(linkLostMsg{err: err})
			return
		}
	}
}
