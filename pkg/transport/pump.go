// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"io"
	"time"
)

// pumpConn gives blocking readers (WebSocket messages, stdin) the read
// timeout semantics of a serial port. A single goroutine owns the reader
// and hands chunks over a channel.
type pumpConn struct {
	w       io.Writer
	closer  io.Closer
	data    chan []byte
	err     error
	pending []byte
	timeout time.Duration
}

func newPumpConn(r io.Reader, w io.Writer, closer io.Closer) *pumpConn {
	pc := &pumpConn{
		w:      w,
		closer: closer,
		data:   make(chan []byte, 64),
	}
	go pc.pump(r)
	return pc
}

func (pc *pumpConn) pump(r io.Reader) {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			pc.data <- chunk
		}
		if err != nil {
			pc.err = err
			close(pc.data)
			return
		}
	}
}

func (pc *pumpConn) Read(p []byte) (int, error) {
	if len(pc.pending) > 0 {
		n := copy(p, pc.pending)
		pc.pending = pc.pending[n:]
		return n, nil
	}

	var timer <-chan time.Time
	if pc.timeout > 0 {
		t := time.NewTimer(pc.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case chunk, ok := <-pc.data:
		if !ok {
			return 0, pc.err
		}
		n := copy(p, chunk)
		pc.pending = chunk[n:]
		return n, nil
	case <-timer:
		return 0, nil
	}
}

func (pc *pumpConn) Write(p []byte) (int, error) {
	return pc.w.Write(p)
}

func (pc *pumpConn) SetReadTimeout(t time.Duration) error {
	pc.timeout = t
	return nil
}

func (pc *pumpConn) Close() error {
	if pc.closer == nil {
		return nil
	}
	return pc.closer.Close()
}
