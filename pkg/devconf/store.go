// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package devconf persists the device's system configuration and watches
// the console link for out-of-band reconfiguration while a host drives the
// factory test.
package devconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// SystemConfig is the persisted device state touched by the factory test.
// CBOR keys are small integers to keep the record compact on flash.
type SystemConfig struct {
	Configured bool      `cbor:"0,keyasint"`
	SSID       string    `cbor:"1,keyasint,omitempty"`
	UseUDP     bool      `cbor:"2,keyasint"`
	RemoteAddr uint32    `cbor:"3,keyasint"`
	UpdatedAt  time.Time `cbor:"4,keyasint"`
	DirtyCount uint32    `cbor:"5,keyasint"`
}

// Store is a file-backed SystemConfig. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  SystemConfig
	now  func() time.Time
}

// Open loads path, or starts from an empty configuration when the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read device config: %w", err)
	}
	if err := cbor.Unmarshal(data, &s.cfg); err != nil {
		return nil, fmt.Errorf("decode device config %s: %w", path, err)
	}
	return s, nil
}

// Get returns a copy of the current configuration.
func (s *Store) Get() SystemConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update applies fn to the configuration and persists the result.
func (s *Store) Update(fn func(*SystemConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	fn(&next)
	next.UpdatedAt = s.now().UTC()

	if err := s.write(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// MarkUnconfigured clears the Configured flag so the application
// re-provisions on its next start.
func (s *Store) MarkUnconfigured() error {
	return s.Update(func(c *SystemConfig) {
		c.Configured = false
		c.DirtyCount++
	})
}

// write persists cfg atomically: temp file in the same directory, then
// rename.
func (s *Store) write(cfg SystemConfig) error {
	data, err := cbor.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode device config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".devconf-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace device config: %w", err)
	}
	return nil
}
