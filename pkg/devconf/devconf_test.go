// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devconf

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/transport/transporttest"
)

func TestStore_PersistsThroughReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sys", "config.cbor")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, SystemConfig{}, s.Get())

	require.NoError(t, s.Update(func(c *SystemConfig) {
		c.Configured = true
		c.SSID = "FactoryNet"
		c.UseUDP = true
		c.RemoteAddr = 0xC0A8010A
	}))

	reopened, err := Open(path)
	require.NoError(t, err)
	got := reopened.Get()
	assert.True(t, got.Configured)
	assert.Equal(t, "FactoryNet", got.SSID)
	assert.True(t, got.UseUDP)
	assert.Equal(t, uint32(0xC0A8010A), got.RemoteAddr)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_MarkUnconfigured(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config.cbor"))
	require.NoError(t, err)
	require.NoError(t, s.Update(func(c *SystemConfig) { c.Configured = true }))

	require.NoError(t, s.MarkUnconfigured())
	require.NoError(t, s.MarkUnconfigured())

	got := s.Get()
	assert.False(t, got.Configured)
	assert.Equal(t, uint32(2), got.DirtyCount)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.cbor")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0x00, 0x13}, 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}

type countingMarker struct {
	mu    sync.Mutex
	count int
}

func (c *countingMarker) MarkUnconfigured() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

func (c *countingMarker) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestWatcher_MarksDirtyPerPacket(t *testing.T) {
	mock := &transporttest.Mock{}
	mock.FeedString("config-a")
	mock.FeedTimeout()
	mock.FeedTimeout()
	mock.FeedString("config-b")
	mock.FeedTimeout()
	mock.EOFWhenDrained = true

	marker := &countingMarker{}
	err := NewWatcher(mock, marker, nil).Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, marker.Count())
}

func TestWatcher_IgnoresSentinelBursts(t *testing.T) {
	mock := &transporttest.Mock{}
	mock.FeedString("###")
	mock.FeedTimeout()
	mock.FeedString("#")
	mock.FeedTimeout()
	mock.FeedString("#config")
	mock.FeedTimeout()
	mock.EOFWhenDrained = true

	marker := &countingMarker{}
	err := NewWatcher(mock, marker, nil).Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, marker.Count(), "only the packet carrying data counts")
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	mock := &transporttest.Mock{}
	marker := &countingMarker{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(mock, marker, nil).Run(ctx)
	}()

	mock.FeedString("x")
	mock.FeedTimeout()
	require.Eventually(t, func() bool { return marker.Count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_UpdatesStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "config.cbor"))
	require.NoError(t, err)
	require.NoError(t, s.Update(func(c *SystemConfig) { c.Configured = true }))

	mock := transporttest.New("reconfigure")
	mock.FeedTimeout()
	mock.EOFWhenDrained = true

	_ = NewWatcher(mock, s, nil).Run(context.Background())
	assert.False(t, s.Get().Configured)
}
