// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

type terminalCloser struct {
	fd    int
	state *term.State
}

func (t *terminalCloser) Close() error {
	if t.state == nil {
		return nil
	}
	return term.Restore(t.fd, t.state)
}

// OpenTerminal uses the process's stdin and stdout as the console link.
// When stdin is a terminal it is switched to raw mode so that backspace,
// delete and carriage return reach the line reader unprocessed; Close
// restores the previous mode.
func OpenTerminal() (*Link, error) {
	return openTerminal(os.Stdin, os.Stdout)
}

func openTerminal(in *os.File, out io.Writer) (*Link, error) {
	closer := &terminalCloser{fd: int(in.Fd())}
	var r io.Reader = in
	if term.IsTerminal(closer.fd) {
		state, err := term.MakeRaw(closer.fd)
		if err != nil {
			return nil, fmt.Errorf("failed to set raw mode: %w", err)
		}
		closer.state = state
		r = &interruptReader{r: in, onInterrupt: interruptSelf}
	}
	return NewLink(newPumpConn(r, out, closer), "Terminal: stdio"), nil
}

// ETX is what Ctrl+C produces once the terminal is raw.
const ETX = 0x03

// interruptReader turns ETX back into an interrupt, which raw mode
// otherwise swallows.
type interruptReader struct {
	r           io.Reader
	onInterrupt func()
}

func (ir *interruptReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if bytes.IndexByte(p[:n], ETX) >= 0 {
		ir.onInterrupt()
	}
	return n, err
}

func interruptSelf() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		p.Signal(os.Interrupt)
	}
}
