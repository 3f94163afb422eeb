// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package platform

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/mfmode/pkg/logging"
	"github.com/Thermoquad/mfmode/pkg/mfg"
)

// DefaultAddressPath is where Linux exposes the first controller's address.
const DefaultAddressPath = "/sys/class/bluetooth/hci0/address"

// Bluetooth scans with the default adapter.
type Bluetooth struct {
	adapter     *bluetooth.Adapter
	address     string
	addressPath string
	logger      logrus.FieldLogger

	mu      sync.Mutex
	enabled bool
	done    chan struct{}
}

// NewBluetooth returns a scanner on the default adapter. address overrides
// the controller address read from sysfs.
func NewBluetooth(address string, logger logrus.FieldLogger) *Bluetooth {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bluetooth{
		adapter:     bluetooth.DefaultAdapter,
		address:     address,
		addressPath: DefaultAddressPath,
		logger:      logger,
	}
}

// LocalAddress implements mfg.BLE.
func (b *Bluetooth) LocalAddress() (net.HardwareAddr, error) {
	s := b.address
	if s == "" {
		data, err := os.ReadFile(b.addressPath)
		if err != nil {
			return nil, fmt.Errorf("read controller address: %w", err)
		}
		s = strings.TrimSpace(string(data))
	}
	return net.ParseMAC(s)
}

// StartScan implements mfg.BLE. The adapter does not expose passive
// scanning, so settings.Passive is advisory.
func (b *Bluetooth) StartScan(settings mfg.ScanSettings, onResult func(mfg.Advertisement)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done != nil {
		return fmt.Errorf("scan already running")
	}
	if !b.enabled {
		if err := b.adapter.Enable(); err != nil {
			return fmt.Errorf("failed to enable bluetooth: %w", err)
		}
		b.enabled = true
	}

	seen := make(map[string]bool)
	done := make(chan struct{})
	b.done = done

	go func() {
		defer close(done)
		err := b.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			addr := result.Address.String()
			if settings.FilterDuplicates {
				if seen[addr] {
					return
				}
				seen[addr] = true
			}
			onResult(mfg.Advertisement{
				Address: addr,
				RSSI:    int(result.RSSI),
				Name:    result.LocalName(),
			})
		})
		if err != nil {
			b.logger.WithError(err).Error("bluetooth scan")
		}
	}()
	return nil
}

// StopScan implements mfg.BLE and waits for the scan goroutine to exit.
func (b *Bluetooth) StopScan() error {
	b.mu.Lock()
	done := b.done
	b.done = nil
	b.mu.Unlock()

	if done == nil {
		return nil
	}
	err := b.adapter.StopScan()
	<-done
	return err
}
