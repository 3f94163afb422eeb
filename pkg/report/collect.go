// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package report

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/mfmode/pkg/transport"
)

// Sentinel asks a booting device for a host-driven session.
const Sentinel = "###"

// CollectOptions tunes Collect.
type CollectOptions struct {
	// SentinelInterval is how often the sentinel is re-sent until the
	// device answers.
	SentinelInterval time.Duration
	// IdleTimeout ends collection once output has started and the device
	// has been silent this long.
	IdleTimeout time.Duration
	// OnData, when set, sees every chunk as it arrives.
	OnData func([]byte)
}

// ErrNoResponse is returned when the device printed nothing before ctx ended.
var ErrNoResponse = errors.New("report: no response from device")

// Collect sends the sentinel until the device starts talking and then
// gathers its output until it goes idle or ctx ends.
func Collect(ctx context.Context, t transport.Transport, opts CollectOptions) (string, error) {
	if opts.SentinelInterval <= 0 {
		opts.SentinelInterval = 50 * time.Millisecond
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}

	var out bytes.Buffer
	buf := make([]byte, 256)
	lastData := time.Time{}

	for {
		if ctx.Err() != nil {
			break
		}

		if out.Len() == 0 {
			if err := t.Send([]byte(Sentinel)); err != nil {
				return "", err
			}
		} else if time.Since(lastData) >= opts.IdleTimeout {
			break
		}

		timeout := opts.SentinelInterval
		if out.Len() > 0 {
			timeout = opts.IdleTimeout - time.Since(lastData)
		}

		n, err := t.Recv(buf, timeout)
		if n > 0 {
			out.Write(buf[:n])
			lastData = time.Now()
			if opts.OnData != nil {
				opts.OnData(buf[:n])
			}
		}
		if err != nil && !errors.Is(err, transport.ErrTimeout) {
			if out.Len() > 0 {
				break
			}
			return "", err
		}
	}

	if out.Len() == 0 {
		return "", ErrNoResponse
	}
	return out.String(), nil
}
