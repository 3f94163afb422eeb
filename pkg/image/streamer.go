// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package image streams flash regions in fixed-size windows so that images
// larger than available memory can be checksummed.
package image

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/checksum"
)

// Region identifies a contiguous storage area.
type Region struct {
	Name   string
	Offset int64
	Length int64
}

// Storage gives read access to named regions.
//
// ReadRegion fills p completely from offset off relative to the region start
// or returns an error.
type Storage interface {
	Region(name string) (Region, error)
	ReadRegion(name string, p []byte, off int64) error
}

// Streamer walks a region window by window, in ascending offset order.
type Streamer struct {
	storage Storage
	config  config
}

// NewStreamer creates a Streamer reading from storage.
func NewStreamer(storage Storage, opts ...Option) *Streamer {
	if storage == nil {
		panic("storage cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Streamer{storage: storage, config: cfg}
}

// WindowSize returns the configured window size.
func (s *Streamer) WindowSize() int {
	return s.config.windowSize
}

// Stream copies exactly region.Length bytes of region into w. The buffer is
// allocated once per call and released when Stream returns.
func (s *Streamer) Stream(ctx context.Context, region Region, w io.Writer) (int64, error) {
	if region.Length < 0 {
		return 0, fmt.Errorf("region %s has negative length %d", region.Name, region.Length)
	}

	buf := make([]byte, s.config.windowSize)
	var done int64

	for done < region.Length {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		n := int64(len(buf))
		if remaining := region.Length - done; remaining < n {
			n = remaining
		}
		window := buf[:n]

		if err := s.storage.ReadRegion(region.Name, window, done); err != nil {
			return done, &StorageReadError{
				Region: region.Name,
				Offset: region.Offset + done,
				Length: len(window),
				Err:    err,
			}
		}
		if _, err := w.Write(window); err != nil {
			return done, fmt.Errorf("write window at 0x%X: %w", region.Offset+done, err)
		}
		done += n

		if s.config.progress != nil {
			s.config.progress(Progress{Region: region.Name, Done: done, Total: region.Length})
		}
	}

	return done, nil
}

// Checksum resolves the named region and returns the CRC-16 of its content.
// No digest is returned when any window fails.
func (s *Streamer) Checksum(ctx context.Context, name string) (checksum.Digest, error) {
	region, err := s.storage.Region(name)
	if err != nil {
		return 0, err
	}

	crc := checksum.New()
	n, err := s.Stream(ctx, region, crc)
	if err != nil {
		return 0, err
	}

	digest := crc.Digest()
	s.config.logger.WithFields(logrus.Fields{
		"region": name,
		"bytes":  n,
		"window": s.config.windowSize,
		"crc":    digest.String(),
	}).Debug("image checksum complete")

	return digest, nil
}
