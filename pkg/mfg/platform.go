// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mfg

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Identity holds the version and identification strings printed at the
// start of a session.
type Identity struct {
	SerialNumber      string
	BootloaderVersion string
	LibraryVersion    string
	AppVersion        string
	DriverVersion     string
}

// ScanSettings configures a BLE scan.
type ScanSettings struct {
	Passive          bool
	FilterDuplicates bool
	Duration         time.Duration
}

// DefaultScanSettings returns a two second passive scan without duplicates.
func DefaultScanSettings() ScanSettings {
	return ScanSettings{
		Passive:          true,
		FilterDuplicates: true,
		Duration:         2 * time.Second,
	}
}

// Advertisement is one BLE scan result.
type Advertisement struct {
	Address string
	RSSI    int
	Name    string
}

// BLE is the Bluetooth radio.
type BLE interface {
	LocalAddress() (net.HardwareAddr, error)

	// StartScan begins scanning; onResult may be called from another
	// goroutine until StopScan returns.
	StartScan(settings ScanSettings, onResult func(Advertisement)) error
	StopScan() error
}

// Network is one Wi-Fi scan result.
type Network struct {
	SSID     string
	Signal   int
	Security string
}

// WLAN is the Wi-Fi radio.
type WLAN interface {
	HardwareAddr() (net.HardwareAddr, error)
	Scan(ctx context.Context) ([]Network, error)
	Connect(ctx context.Context, ssid string) error
}

// FormatHardwareAddr renders addr as upper-case hex pairs joined by dashes,
// e.g. C8-93-46-00-1A-2B.
func FormatHardwareAddr(addr net.HardwareAddr) string {
	parts := make([]string, len(addr))
	for i, b := range addr {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, "-")
}
