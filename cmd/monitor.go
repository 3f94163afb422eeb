// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Log a device console with timestamps",
	Long: `Print everything a device writes to its console, one timestamped line at a
time, without sending anything. Useful for watching a line station or
checking that a link is stable.

With --hex each received chunk is shown as hex instead. With --duration the
monitor stops after that long and prints a summary; otherwise it runs until
Ctrl+C.

Exit codes:
  0 - Monitor ended normally
  1 - Connection error

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

var (
	monitorDuration time.Duration
	monitorHex      bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorDuration, "duration", 0, "Stop after this long (0 runs until Ctrl+C)")
	monitorCmd.Flags().BoolVar(&monitorHex, "hex", false, "Show raw chunks as hex")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection(false)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if monitorDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, monitorDuration)
		defer cancel()
	}

	fmt.Printf("mfmode - Console Monitor\n")
	fmt.Printf("Connection: %s\n", link.Info())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	start := time.Now()
	stats, err := monitor(ctx, link, os.Stdout, monitorHex)

	fmt.Printf("\n--- Monitor Results ---\n")
	fmt.Printf("Duration: %s\n", formatElapsed(time.Since(start)))
	fmt.Printf("Lines received: %d\n", stats.lines)
	fmt.Printf("Bytes received: %d\n", stats.bytes)
	if err != nil {
		fmt.Printf("Result: connection error: %v\n", err)
		return err
	}
	return nil
}

type monitorStats struct {
	bytes int
	lines int
}

// monitor copies device output to w until ctx ends or the link fails.
func monitor(ctx context.Context, link transport.Transport, w io.Writer, hex bool) (monitorStats, error) {
	var stats monitorStats
	var line strings.Builder
	buf := make([]byte, 256)

	stamp := func() string { return time.Now().Format("15:04:05.000") }
	flush := func() {
		fmt.Fprintf(w, "[%s] %s\n", stamp(), line.String())
		line.Reset()
		stats.lines++
	}

	for ctx.Err() == nil {
		n, err := link.Recv(buf, 100*time.Millisecond)
		if n > 0 {
			stats.bytes += n
			if hex {
				fmt.Fprintf(w, "[%s] Received %d bytes: %x\n", stamp(), n, buf[:n])
			} else {
				for _, b := range buf[:n] {
					switch b {
					case '\r':
					case '\n':
						flush()
					default:
						line.WriteByte(b)
					}
				}
			}
		}
		if err != nil && !errors.Is(err, transport.ErrTimeout) {
			if line.Len() > 0 {
				flush()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrConnectionClosed) {
				return stats, nil
			}
			return stats, err
		}
	}

	if line.Len() > 0 {
		flush()
	}
	return stats, nil
}
