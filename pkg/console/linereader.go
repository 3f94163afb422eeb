// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

// Control characters recognised by the line editor
const (
	Backspace = 0x08
	Delete    = 0x7F
	CR        = 0x0D
	LF        = 0x0A
	Space     = 0x20
)

const (
	// DefaultLineCapacity is the maximum number of characters in a line
	DefaultLineCapacity = 64

	// DefaultByteTimeout bounds each single-byte receive
	DefaultByteTimeout = 100 * time.Millisecond
)

// ErrLineOverflow is returned when a line grows past the buffer capacity.
// The partial line is discarded.
var ErrLineOverflow = errors.New("console: line exceeds buffer capacity")

// LineReader reads operator lines one byte at a time.
type LineReader struct {
	transport   transport.Transport
	capacity    int
	byteTimeout time.Duration
}

// LineReaderOption configures a LineReader.
type LineReaderOption func(*LineReader)

// WithLineCapacity sets the line buffer capacity. Non-positive values are
// ignored.
func WithLineCapacity(n int) LineReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithByteTimeout sets the per-byte receive timeout. Non-positive values are
// ignored.
func WithByteTimeout(d time.Duration) LineReaderOption {
	return func(r *LineReader) {
		if d > 0 {
			r.byteTimeout = d
		}
	}
}

// NewLineReader creates a LineReader on t.
func NewLineReader(t transport.Transport, opts ...LineReaderOption) *LineReader {
	r := &LineReader{
		transport:   t,
		capacity:    DefaultLineCapacity,
		byteTimeout: DefaultByteTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capacity returns the maximum line length.
func (r *LineReader) Capacity() int {
	return r.capacity
}

// ReadLine blocks until CR or LF and returns the edited line without the
// terminator. Receive timeouts are retried; any other transport error is
// returned. The context is checked before every byte.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	buf := make([]byte, r.capacity)
	n := 0
	var in [1]byte

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if _, err := r.transport.Recv(in[:], r.byteTimeout); err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return "", err
		}
		c := in[0]

		if err := r.transport.Send(in[:]); err != nil {
			return "", err
		}

		switch c {
		case Backspace, Delete:
			if n > 0 {
				if err := r.transport.Send([]byte{Space, c}); err != nil {
					return "", err
				}
				n--
			}
			continue
		case CR, LF:
			return string(buf[:n]), nil
		}

		if n == len(buf) {
			return "", ErrLineOverflow
		}
		buf[n] = c
		n++
	}
}
