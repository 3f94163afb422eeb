// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mode decides at boot whether the factory test runs, and whether a
// host program or a human operator is on the other end of the console.
package mode

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/logging"
	"github.com/Thermoquad/mfmode/pkg/transport"
)

const (
	// DefaultSentinel is the byte a host sends to claim the session
	DefaultSentinel = '#'

	// SentinelLength is the number of sentinel bytes that must match
	SentinelLength = 3

	// DefaultSentinelTimeout bounds the host detection read
	DefaultSentinelTimeout = 100 * time.Millisecond
)

// Mode holds the two boot gates. It is computed once and passed by value.
type Mode struct {
	FactoryTest bool
	HostDriven  bool
}

// String describes the mode for logs.
func (m Mode) String() string {
	switch {
	case !m.FactoryTest:
		return "application"
	case m.HostDriven:
		return "factory-test/host"
	default:
		return "factory-test/interactive"
	}
}

// BootSignal is the platform's decision on entering factory test.
type BootSignal interface {
	ShouldEnterFactoryTest() bool
}

// StaticSignal is a fixed BootSignal, usually taken from configuration.
type StaticSignal bool

// ShouldEnterFactoryTest implements BootSignal.
func (s StaticSignal) ShouldEnterFactoryTest() bool { return bool(s) }

// MarkerFileSignal enters factory test when the file exists. Production
// images drop the marker once the line test has passed.
type MarkerFileSignal string

// ShouldEnterFactoryTest implements BootSignal.
func (m MarkerFileSignal) ShouldEnterFactoryTest() bool {
	if m == "" {
		return false
	}
	_, err := os.Stat(string(m))
	return err == nil
}

// Detector reads the host sentinel from the console transport.
type Detector struct {
	transport transport.Transport
	sentinel  byte
	timeout   time.Duration
	logger    logrus.FieldLogger
}

// Option configures a Detector.
type Option func(*Detector)

// WithSentinel sets the sentinel byte.
func WithSentinel(b byte) Option {
	return func(d *Detector) {
		d.sentinel = b
	}
}

// WithTimeout sets the detection timeout. Non-positive values are ignored.
func WithTimeout(t time.Duration) Option {
	return func(d *Detector) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a Detector on t.
func NewDetector(t transport.Transport, opts ...Option) *Detector {
	d := &Detector{
		transport: t,
		sentinel:  DefaultSentinel,
		timeout:   DefaultSentinelTimeout,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectHost makes a single bounded read of SentinelLength bytes. Only a
// complete match reports a host; timeouts, short reads and errors fall back
// to interactive mode.
func (d *Detector) DetectHost(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	var buf [SentinelLength]byte
	n, err := d.transport.Recv(buf[:], d.timeout)
	if err != nil {
		if !errors.Is(err, transport.ErrTimeout) {
			d.logger.WithError(err).Warn("host detection read failed")
		}
		d.logger.WithField("received", n).Debug("no host sentinel")
		return false
	}

	for _, b := range buf {
		if b != d.sentinel {
			d.logger.WithField("received", string(buf[:])).Debug("host sentinel mismatch")
			return false
		}
	}
	return true
}

// Detect evaluates gate A and, only when it is open, gate B.
func (d *Detector) Detect(ctx context.Context, signal BootSignal) Mode {
	if signal == nil || !signal.ShouldEnterFactoryTest() {
		return Mode{}
	}
	m := Mode{FactoryTest: true, HostDriven: d.DetectHost(ctx)}
	d.logger.WithField("mode", m.String()).Info("boot mode decided")
	return m
}
