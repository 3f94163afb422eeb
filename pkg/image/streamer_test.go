// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package image

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/checksum"
)

type readCall struct {
	off    int64
	length int
}

// recordingStorage wraps MemStorage and remembers every read
type recordingStorage struct {
	*MemStorage
	calls  []readCall
	failAt int // fail the Nth read (1-based), 0 = never
}

func (r *recordingStorage) ReadRegion(name string, p []byte, off int64) error {
	r.calls = append(r.calls, readCall{off: off, length: len(p)})
	if r.failAt > 0 && len(r.calls) == r.failAt {
		return errors.New("flash controller timeout")
	}
	return r.MemStorage.ReadRegion(name, p, off)
}

func newRecording(name string, data []byte) *recordingStorage {
	m := NewMemStorage()
	m.Put(name, data)
	return &recordingStorage{MemStorage: m}
}

func TestStreamer_WindowsFor2050Bytes(t *testing.T) {
	data := make([]byte, 2050)
	storage := newRecording("app", data)

	var got bytes.Buffer
	s := NewStreamer(storage)
	region, err := storage.Region("app")
	require.NoError(t, err)

	n, err := s.Stream(context.Background(), region, &got)
	require.NoError(t, err)
	assert.Equal(t, int64(2050), n)
	assert.Equal(t, []readCall{{0, 1024}, {1024, 1024}, {2048, 2}}, storage.calls)
	assert.Equal(t, data, got.Bytes())
}

func TestStreamer_OffsetsMonotonicAndExact(t *testing.T) {
	lengths := []int{0, 1, 7, 1023, 1024, 1025, 4096, 5000}
	windows := []int{1, 3, 64, 1024, 4096}

	for _, l := range lengths {
		for _, w := range windows {
			data := bytes.Repeat([]byte{0xA5, 0x5A, 0x01}, l)[:l]
			storage := newRecording("r", data)
			s := NewStreamer(storage, WithWindowSize(w))

			digest, err := s.Checksum(context.Background(), "r")
			require.NoError(t, err)
			assert.Equal(t, checksum.Digest(checksum.Checksum(data)), digest)

			var next int64
			total := 0
			for _, c := range storage.calls {
				require.Equal(t, next, c.off, "len=%d window=%d", l, w)
				require.LessOrEqual(t, c.length, w)
				require.Positive(t, c.length)
				next += int64(c.length)
				total += c.length
			}
			assert.Equal(t, l, total, "len=%d window=%d", l, w)
		}
	}
}

func TestStreamer_ChecksumIsRepeatable(t *testing.T) {
	storage := NewMemStorage()
	storage.Put("app", []byte("123456789"))
	s := NewStreamer(storage, WithWindowSize(4))

	first, err := s.Checksum(context.Background(), "app")
	require.NoError(t, err)
	second, err := s.Checksum(context.Background(), "app")
	require.NoError(t, err)

	assert.Equal(t, "31C3", first.String())
	assert.Equal(t, first, second)
}

func TestStreamer_StorageErrorAbortsRun(t *testing.T) {
	storage := newRecording("app", make([]byte, 3000))
	storage.failAt = 2
	s := NewStreamer(storage)

	digest, err := s.Checksum(context.Background(), "app")
	require.Error(t, err)
	assert.Equal(t, checksum.Digest(0), digest)

	var readErr *StorageReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "app", readErr.Region)
	assert.Equal(t, int64(1024), readErr.Offset)
	assert.Equal(t, 1024, readErr.Length)
	assert.Len(t, storage.calls, 2, "no reads after the failure")
}

func TestStreamer_UnknownRegion(t *testing.T) {
	s := NewStreamer(NewMemStorage())
	_, err := s.Checksum(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownRegion)
}

func TestStreamer_ContextCancelled(t *testing.T) {
	storage := newRecording("app", make([]byte, 4096))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStreamer(storage).Checksum(ctx, "app")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, storage.calls)
}

func TestStreamer_ProgressReported(t *testing.T) {
	storage := NewMemStorage()
	storage.Put("app", make([]byte, 2500))

	var seen []Progress
	s := NewStreamer(storage, WithProgressCallback(func(p Progress) {
		seen = append(seen, p)
	}))
	_, err := s.Checksum(context.Background(), "app")
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, int64(1024), seen[0].Done)
	assert.Equal(t, int64(2500), seen[2].Done)
	assert.Equal(t, int64(2500), seen[2].Total)
}

func TestWithWindowSize_IgnoresNonPositive(t *testing.T) {
	s := NewStreamer(NewMemStorage(), WithWindowSize(0), WithWindowSize(-5))
	assert.Equal(t, DefaultWindowSize, s.WindowSize())
}

func TestFlashFile_Partitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flash.bin")
	content := make([]byte, 8192)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	ff, err := OpenFlashFile(path, []Partition{
		{Name: "bootloader", Offset: 0, Length: 4096},
		{Name: "application", Offset: 4096},
	})
	require.NoError(t, err)
	defer ff.Close()

	region, err := ff.Region("application")
	require.NoError(t, err)
	assert.Equal(t, Region{Name: "application", Offset: 4096, Length: 4096}, region)

	digest, err := NewStreamer(ff).Checksum(context.Background(), "application")
	require.NoError(t, err)
	assert.Equal(t, checksum.Digest(checksum.Checksum(content[4096:])), digest)

	buf := make([]byte, 16)
	assert.Error(t, ff.ReadRegion("bootloader", buf, 4090))
}

func TestOpenFlashFile_RejectsOversizedPartition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := OpenFlashFile(path, []Partition{{Name: "application", Offset: 50, Length: 51}})
	assert.Error(t, err)
}
