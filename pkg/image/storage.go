// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package image

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Partition describes one entry of a flash partition table.
type Partition struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Offset int64  `mapstructure:"offset" yaml:"offset"`
	Length int64  `mapstructure:"length" yaml:"length"`
}

// FlashFile serves regions out of a raw flash dump (a file or a block
// device) according to a partition table.
type FlashFile struct {
	f          io.ReaderAt
	closer     io.Closer
	partitions map[string]Partition
}

// OpenFlashFile opens path and indexes partitions by name. A partition with
// a zero length extends to the end of the file.
func OpenFlashFile(path string, partitions []Partition) (*FlashFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flash image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat flash image: %w", err)
	}

	table := make(map[string]Partition, len(partitions))
	for _, p := range partitions {
		if p.Length == 0 {
			p.Length = info.Size() - p.Offset
		}
		if p.Offset < 0 || p.Length < 0 || p.Offset+p.Length > info.Size() {
			f.Close()
			return nil, fmt.Errorf("partition %s (0x%X+%d) exceeds image size %d", p.Name, p.Offset, p.Length, info.Size())
		}
		table[p.Name] = p
	}

	return &FlashFile{f: f, closer: f, partitions: table}, nil
}

// Region implements Storage.
func (ff *FlashFile) Region(name string) (Region, error) {
	p, ok := ff.partitions[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	return Region{Name: p.Name, Offset: p.Offset, Length: p.Length}, nil
}

// ReadRegion implements Storage.
func (ff *FlashFile) ReadRegion(name string, p []byte, off int64) error {
	part, ok := ff.partitions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	if off < 0 || off+int64(len(p)) > part.Length {
		return fmt.Errorf("read past end of %s: offset %d length %d", name, off, len(p))
	}
	n, err := ff.f.ReadAt(p, part.Offset+off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Close releases the underlying file.
func (ff *FlashFile) Close() error {
	return ff.closer.Close()
}

// MemStorage keeps regions in memory.
type MemStorage struct {
	mu      sync.RWMutex
	regions map[string][]byte
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{regions: make(map[string][]byte)}
}

// Put stores data as the named region.
func (m *MemStorage) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[name] = data
}

// Region implements Storage.
func (m *MemStorage) Region(name string) (Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	return Region{Name: name, Length: int64(len(data))}, nil
}

// ReadRegion implements Storage.
func (m *MemStorage) ReadRegion(name string, p []byte, off int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.regions[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	if off < 0 || off+int64(len(p)) > int64(len(data)) {
		return io.ErrUnexpectedEOF
	}
	copy(p, data[off:])
	return nil
}
