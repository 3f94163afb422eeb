// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transporttest provides a scripted in-memory Transport for tests.
package transporttest

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

// event is one scripted input item: a byte, or a timeout when gap is set
type event struct {
	b   byte
	gap bool
}

// Mock is a Transport fed from a script. Each FeedTimeout marker makes the
// Recv that reaches it expire. Once the script is drained Recv times out,
// or returns io.EOF when EOFWhenDrained is set.
type Mock struct {
	mu             sync.Mutex
	script         []event
	sent           bytes.Buffer
	recvCalls      int
	EOFWhenDrained bool
}

// New returns a Mock with input already queued.
func New(input string) *Mock {
	m := &Mock{}
	m.FeedString(input)
	return m
}

// Feed queues raw bytes.
func (m *Mock) Feed(b ...byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range b {
		m.script = append(m.script, event{b: c})
	}
}

// FeedString queues the bytes of s.
func (m *Mock) FeedString(s string) {
	m.Feed([]byte(s)...)
}

// FeedTimeout queues a receive timeout.
func (m *Mock) FeedTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, event{gap: true})
}

// Send implements transport.Transport.
func (m *Mock) Send(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent.Write(p)
	return nil
}

// Recv implements transport.Transport.
func (m *Mock) Recv(p []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	m.recvCalls++
	got := 0
	for got < len(p) {
		if len(m.script) == 0 {
			eof := m.EOFWhenDrained
			m.mu.Unlock()
			if eof {
				return got, io.EOF
			}
			if timeout > time.Millisecond {
				timeout = time.Millisecond
			}
			time.Sleep(timeout)
			return got, transport.ErrTimeout
		}
		ev := m.script[0]
		m.script = m.script[1:]
		if ev.gap {
			m.mu.Unlock()
			return got, transport.ErrTimeout
		}
		p[got] = ev.b
		got++
	}
	m.mu.Unlock()
	return got, nil
}

// Sent returns everything written with Send.
func (m *Mock) Sent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent.String()
}

// RecvCalls returns how many times Recv was called.
func (m *Mock) RecvCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recvCalls
}

// Pending returns the number of scripted events not consumed yet.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}
