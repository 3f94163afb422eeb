// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/transport/transporttest"
)

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2*time.Hour + time.Minute + 5*time.Second, "2 hours, 1 minute, and 5 seconds"},
		{26 * time.Hour, "1 day and 2 hours"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatElapsed(tc.d), tc.d.String())
	}
}

func TestAppendDeviceText(t *testing.T) {
	var buf []byte
	buf = appendDeviceText(buf, []byte("\r\nMXCHIP_MFMODE> bad"))
	buf = appendDeviceText(buf, []byte("\b \bc\r"))
	assert.Equal(t, "\nMXCHIP_MFMODE> bac", string(buf))

	// DEL echoes the same erase sequence as BS
	buf = appendDeviceText(buf, []byte("x\x7f \x7fd"))
	assert.Equal(t, "\nMXCHIP_MFMODE> bacd", string(buf))

	// a backspace never crosses a line break
	buf = appendDeviceText(nil, []byte("a\n\b\x7f"))
	assert.Equal(t, "a\n", string(buf))
}

func update(t *testing.T, m termModel, msg tea.Msg) termModel {
	t.Helper()
	next, _ := m.Update(msg)
	tm, ok := next.(termModel)
	require.True(t, ok)
	return tm
}

func TestTermModel_SendsLines(t *testing.T) {
	tr := transporttest.New("")
	m := initialTermModel(tr, "Serial: test")

	for _, r := range "ssid Lab" {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, "ssid Lab\r###", tr.Sent())
	assert.Empty(t, m.input.Value())
	require.Len(t, m.events, 2)
	assert.False(t, m.events[0].isError)
}

func TestTermModel_DeviceOutputBuildsSummary(t *testing.T) {
	m := initialTermModel(transporttest.New(""), "Serial: test")

	m = update(t, m, deviceDataMsg("==== MXCHIP Manufacture Test ====\r\nSerial Number: SN7\r\n"))
	m = update(t, m, deviceDataMsg("App CRC: 31C3\r\nMAC: C8-93-46-00-1A-2B\r\n"))

	require.NotNil(t, m.summary)
	assert.Equal(t, "SN7", m.summary.SerialNumber)
	assert.Equal(t, "31C3", m.summary.AppCRC)
	assert.Len(t, m.events, 1)
	assert.Contains(t, m.View(), "SN7")
}

func TestTermModel_LinkLost(t *testing.T) {
	tr := transporttest.New("")
	m := initialTermModel(tr, "WebSocket: ws://x")

	m = update(t, m, linkLostMsg{err: errors.New("closed")})
	assert.True(t, m.connectionLost)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Empty(t, tr.Sent())
	assert.True(t, m.events[len(m.events)-1].isError)
}
