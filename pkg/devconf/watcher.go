// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devconf

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/logging"
	"github.com/Thermoquad/mfmode/pkg/mode"
	"github.com/Thermoquad/mfmode/pkg/transport"
)

const (
	// DefaultPacketSize is the largest packet the watcher reads at once
	DefaultPacketSize = 500

	// DefaultPacketTimeout ends a packet when the line goes quiet
	DefaultPacketTimeout = 500 * time.Millisecond
)

// Marker receives the one-way "configuration dirty" signal.
type Marker interface {
	MarkUnconfigured() error
}

// Watcher reads packets from the console link and marks the configuration
// dirty for each one. It is the only reader of the link while it runs.
type Watcher struct {
	transport  transport.Transport
	marker     Marker
	packetSize int
	timeout    time.Duration
	logger     logrus.FieldLogger
}

// NewWatcher creates a Watcher. A nil logger discards output.
func NewWatcher(t transport.Transport, marker Marker, logger logrus.FieldLogger) *Watcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		transport:  t,
		marker:     marker,
		packetSize: DefaultPacketSize,
		timeout:    DefaultPacketTimeout,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or the transport fails.
func (w *Watcher) Run(ctx context.Context) error {
	buf := make([]byte, w.packetSize)
	for {
		n, err := w.readPacket(ctx, buf)
		if err != nil {
			return err
		}

		// a host keeps resending its sentinel until output starts, so
		// the tail of that burst can still be queued here
		if onlySentinel(buf[:n]) {
			w.logger.WithField("bytes", n).Debug("ignoring trailing host sentinel")
			continue
		}

		w.logger.WithField("bytes", n).Info("out-of-band data received, marking configuration dirty")
		if err := w.marker.MarkUnconfigured(); err != nil {
			w.logger.WithError(err).Error("failed to mark configuration dirty")
		}
	}
}

func onlySentinel(p []byte) bool {
	for _, b := range p {
		if b != mode.DefaultSentinel {
			return false
		}
	}
	return len(p) > 0
}

// readPacket returns a full buffer, or whatever arrived before the line went
// quiet. Quiet periods with no data at all are retried.
func (w *Watcher) readPacket(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := w.transport.Recv(buf, w.timeout)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, transport.ErrTimeout) {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
	}
}
