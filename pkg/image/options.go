// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package image

import (
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/logging"
)

// DefaultWindowSize is the number of bytes read from storage per window.
const DefaultWindowSize = 1024

// Progress reports how far a stream has advanced.
type Progress struct {
	Region string
	Done   int64
	Total  int64
}

// ProgressCallback is called after every window. It runs on the streaming
// goroutine and should return quickly.
type ProgressCallback func(Progress)

type config struct {
	windowSize int
	progress   ProgressCallback
	logger     logrus.FieldLogger
}

func defaultConfig() config {
	return config{
		windowSize: DefaultWindowSize,
		logger:     logging.Discard(),
	}
}

// Option configures a Streamer.
type Option func(*config)

// WithWindowSize sets the window size. Non-positive values are ignored.
func WithWindowSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.windowSize = size
		}
	}
}

// WithProgressCallback sets a callback invoked after each window.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *config) {
		c.progress = cb
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
