// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte links the factory-test console runs
// over: serial ports, WebSocket bridges and the local terminal.
package transport

import (
	"errors"
	"io"
	"time"
)

// ErrTimeout is returned by Recv when the buffer could not be filled before
// the timeout expired. It is routine and callers are expected to retry.
var ErrTimeout = errors.New("transport: receive timeout")

// Transport is an unframed byte link with a bounded receive wait.
type Transport interface {
	// Send writes all of p.
	Send(p []byte) error

	// Recv fills p completely, waiting at most timeout. On expiry it
	// returns the number of bytes received so far and ErrTimeout.
	Recv(p []byte, timeout time.Duration) (int, error)
}

// Conn is a stream that supports a per-read timeout. A Read that times out
// returns 0, nil. go.bug.st/serial ports satisfy Conn directly.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadTimeout(t time.Duration) error
}

// Link adapts a Conn to Transport.
type Link struct {
	conn Conn
	info string
}

// NewLink wraps conn. info is a human-readable description used in logs.
func NewLink(conn Conn, info string) *Link {
	return &Link{conn: conn, info: info}
}

// Send implements Transport.
func (l *Link) Send(p []byte) error {
	for len(p) > 0 {
		n, err := l.conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Recv implements Transport.
func (l *Link) Recv(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	got := 0
	for got < len(p) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return got, ErrTimeout
		}
		if err := l.conn.SetReadTimeout(remaining); err != nil {
			return got, err
		}
		n, err := l.conn.Read(p[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, ErrTimeout
		}
	}
	return got, nil
}

// Info describes the underlying connection.
func (l *Link) Info() string {
	return l.info
}

// Close closes the underlying connection.
func (l *Link) Close() error {
	return l.conn.Close()
}
