// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/transport/transporttest"
)

func TestMonitor_Lines(t *testing.T) {
	tr := transporttest.New("==== MXCHIP Manufacture Test ====\r\nSerial Number: SN1\r\npartial")
	tr.EOFWhenDrained = true

	var out bytes.Buffer
	stats, err := monitor(context.Background(), tr, &out, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "] ==== MXCHIP Manufacture Test ===="))
	assert.True(t, strings.HasSuffix(lines[1], "] Serial Number: SN1"))
	assert.True(t, strings.HasSuffix(lines[2], "] partial"))
	assert.Equal(t, 3, stats.lines)
	assert.Equal(t, len("==== MXCHIP Manufacture Test ====\r\nSerial Number: SN1\r\npartial"), stats.bytes)
	assert.Empty(t, tr.Sent())
}

func TestMonitor_Hex(t *testing.T) {
	tr := transporttest.New("AB")
	tr.EOFWhenDrained = true

	var out bytes.Buffer
	stats, err := monitor(context.Background(), tr, &out, true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Received 2 bytes: 4142")
	assert.Equal(t, 2, stats.bytes)
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	tr := transporttest.New("no newline yet")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	stats, err := monitor(ctx, tr, &out, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.bytes)
}
