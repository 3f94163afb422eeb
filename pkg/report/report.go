// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package report turns a factory-test console transcript into a structured
// record for the manufacturing line.
package report

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/mfmode/pkg/mfg"
)

// ErrNoBanner is returned when the transcript never shows the session banner.
var ErrNoBanner = errors.New("report: session banner not found")

// BLEDevice is one advertiser seen during the BLE scan.
type BLEDevice struct {
	Address string `yaml:"address"`
	RSSI    int    `yaml:"rssi"`
}

// Network is one access point seen during the Wi-Fi scan.
type Network struct {
	SSID   string `yaml:"ssid"`
	Signal int    `yaml:"signal"`
}

// Report is the parsed diagnostics of one session.
type Report struct {
	SerialNumber      string      `yaml:"serial_number"`
	AppCRC            string      `yaml:"app_crc"`
	BootloaderVersion string      `yaml:"bootloader_version"`
	LibraryVersion    string      `yaml:"library_version"`
	AppVersion        string      `yaml:"app_version"`
	DriverVersion     string      `yaml:"driver_version"`
	BluetoothAddress  string      `yaml:"bluetooth_address,omitempty"`
	BLEScanComplete   bool        `yaml:"ble_scan_complete"`
	BLEDevices        []BLEDevice `yaml:"ble_devices,omitempty"`
	MAC               string      `yaml:"mac,omitempty"`
	Networks          []Network   `yaml:"networks,omitempty"`
	CollectedAt       time.Time   `yaml:"collected_at"`
}

// Parse extracts a Report from everything the device printed. Text before
// the banner is ignored.
func Parse(transcript string) (*Report, error) {
	start := strings.Index(transcript, mfg.Banner)
	if start < 0 {
		return nil, ErrNoBanner
	}

	r := &Report{CollectedAt: time.Now().UTC()}
	for _, line := range strings.Split(transcript[start+len(mfg.Banner):], "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			if line == "BLE scan complete" {
				r.BLEScanComplete = true
			}
			continue
		}

		switch key {
		case "Serial Number":
			r.SerialNumber = value
		case "App CRC":
			r.AppCRC = value
		case "Bootloader Version":
			r.BootloaderVersion = value
		case "Library Version":
			r.LibraryVersion = value
		case "APP Version":
			r.AppVersion = value
		case "Driver":
			r.DriverVersion = value
		case "Local Bluetooth Address":
			r.BluetoothAddress = value
		case "MAC":
			r.MAC = value
		case "ADDR":
			addr, rssi, ok := cutInt(value, ", RSSI: ")
			if ok {
				r.BLEDevices = append(r.BLEDevices, BLEDevice{Address: addr, RSSI: rssi})
			}
		case "SSID":
			ssid, signal, ok := cutInt(strings.TrimSuffix(value, "%"), ", Signal: ")
			if ok {
				r.Networks = append(r.Networks, Network{SSID: ssid, Signal: signal})
			}
		}
	}
	return r, nil
}

// cutInt splits s at the last sep and parses what follows as an integer.
func cutInt(s, sep string) (string, int, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i+len(sep):])
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}

// Passed reports whether the identity block is complete and the image
// checksum was computed.
func (r *Report) Passed() bool {
	if r.SerialNumber == "" || r.AppCRC == "" || r.AppCRC == "error" {
		return false
	}
	_, err := strconv.ParseUint(r.AppCRC, 16, 16)
	return err == nil
}

// YAML encodes the report.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}
