// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package platform

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/mfmode/pkg/mfg"
)

func TestSerialNumber_Configured(t *testing.T) {
	assert.Equal(t, "MX-42", SerialNumber("MX-42"))
}

func TestSerialNumber_Fallback(t *testing.T) {
	sn := SerialNumber("")
	assert.NotEmpty(t, sn)
	assert.LessOrEqual(t, len(sn), 16)
}

func TestSplitTerse(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"Line3:80:WPA2", []string{"Line3", "80", "WPA2"}},
		{`Lab\:5G:64:`, []string{"Lab:5G", "64", ""}},
		{`back\\slash:10:--`, []string{`back\slash`, "10", "--"}},
		{":30:WPA1", []string{"", "30", "WPA1"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, splitTerse(tc.line), tc.line)
	}
}

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(out string, err error, calls *[]recordedCall) Runner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name, args})
		return []byte(out), err
	}
}

func TestNetworkManager_Scan(t *testing.T) {
	var calls []recordedCall
	nm := &NetworkManager{
		Interface: "wlan0",
		Run:       fakeRunner("Line3:80:WPA2\n:55:WPA2\nGuest\\:Net:31:\n\n", nil, &calls),
	}

	networks, err := nm.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []mfg.Network{
		{SSID: "Line3", Signal: 80, Security: "WPA2"},
		{SSID: "Guest:Net", Signal: 31, Security: ""},
	}, networks)

	require.Len(t, calls, 1)
	assert.Equal(t, "nmcli", calls[0].name)
	assert.Contains(t, calls[0].args, "wlan0")
}

func TestNetworkManager_ScanError(t *testing.T) {
	var calls []recordedCall
	nm := &NetworkManager{Interface: "wlan0", Run: fakeRunner("", errors.New("not running"), &calls)}
	_, err := nm.Scan(context.Background())
	assert.Error(t, err)
}

func TestNetworkManager_Connect(t *testing.T) {
	var calls []recordedCall
	nm := &NetworkManager{Interface: "wlan1", Password: "s3cret", Run: fakeRunner("", nil, &calls)}

	require.NoError(t, nm.Connect(context.Background(), "Line3"))
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"device", "wifi", "connect", "Line3", "ifname", "wlan1", "password", "s3cret"}, calls[0].args)

	calls = nil
	nm.Password = ""
	nm.Run = fakeRunner("", errors.New("no network"), &calls)
	err := nm.Connect(context.Background(), "Gone")
	assert.ErrorContains(t, err, "join Gone")
	assert.NotContains(t, calls[0].args, "password")

	calls = nil
	err = nm.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSSID)
	assert.Empty(t, calls)
}

func TestBluetooth_LocalAddress(t *testing.T) {
	b := NewBluetooth("c8:93:46:00:1a:2b", nil)
	addr, err := b.LocalAddress()
	require.NoError(t, err)
	assert.Equal(t, "C8-93-46-00-1A-2B", mfg.FormatHardwareAddr(addr))

	path := filepath.Join(t.TempDir(), "address")
	require.NoError(t, os.WriteFile(path, []byte("00:11:22:33:44:55\n"), 0644))
	b = NewBluetooth("", nil)
	b.addressPath = path
	addr, err = b.LocalAddress()
	require.NoError(t, err)
	assert.Equal(t, net.HardwareAddr{0, 0x11, 0x22, 0x33, 0x44, 0x55}, addr)

	b.addressPath = filepath.Join(t.TempDir(), "missing")
	_, err = b.LocalAddress()
	assert.Error(t, err)
}

func TestBluetooth_StopWithoutScan(t *testing.T) {
	b := NewBluetooth("", nil)
	assert.NoError(t, b.StopScan())
}
