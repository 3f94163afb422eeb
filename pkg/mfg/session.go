// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mfg sequences the factory-test session: identity, image checksum,
// radio checks and, for a human operator, the network selection console.
package mfg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/console"
	"github.com/Thermoquad/mfmode/pkg/devconf"
	"github.com/Thermoquad/mfmode/pkg/image"
	"github.com/Thermoquad/mfmode/pkg/logging"
	"github.com/Thermoquad/mfmode/pkg/mode"
	"github.com/Thermoquad/mfmode/pkg/transport"
)

// Banner opens every session.
const Banner = "==== MXCHIP Manufacture Test ===="

// DefaultImageRegion is the partition checksummed as the application image.
const DefaultImageRegion = "application"

// Config wires a Session to its collaborators. Only Transport is required;
// a nil Streamer, BLE, WLAN or Store skips the matching step.
type Config struct {
	Transport   transport.Transport
	Identity    Identity
	Streamer    *image.Streamer
	ImageRegion string
	BLE         BLE
	Scan        ScanSettings
	WLAN        WLAN
	Store       *devconf.Store

	Prompt       string
	LineCapacity int
	ByteTimeout  time.Duration

	Logger logrus.FieldLogger
}

// Session runs one factory-test session.
type Session struct {
	cfg    Config
	logger logrus.FieldLogger

	// serialises transport writes with BLE callbacks
	mu sync.Mutex
}

// NewSession validates cfg and fills in defaults.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, errors.New("mfg: transport is required")
	}
	if cfg.ImageRegion == "" {
		cfg.ImageRegion = DefaultImageRegion
	}
	if cfg.Scan.Duration <= 0 {
		cfg.Scan = DefaultScanSettings()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = console.DefaultPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{cfg: cfg, logger: logger}, nil
}

// Run executes the diagnostic steps in order and then idles until ctx is
// cancelled. Step failures are reported on the console and in the log; they
// never end the session early. Run always returns ctx.Err().
func (s *Session) Run(ctx context.Context, m mode.Mode) error {
	log := s.logger.WithField("mode", m.String())
	log.Info("factory test session started")

	s.printIdentity(ctx)
	if ctx.Err() == nil && s.cfg.BLE != nil {
		s.bleCheck(ctx)
	}
	if ctx.Err() == nil && s.cfg.WLAN != nil {
		s.wlanCheck(ctx)
	}

	if ctx.Err() == nil {
		if m.HostDriven {
			s.startWatcher(ctx)
		} else {
			s.operatorNetwork(ctx)
		}
	}

	log.Info("factory test steps complete, idling")
	<-ctx.Done()
	return ctx.Err()
}

func (s *Session) printIdentity(ctx context.Context) {
	id := s.cfg.Identity
	s.printf("%s\r\n", Banner)
	s.printf("Serial Number: %s\r\n", id.SerialNumber)
	s.printf("App CRC: %s\r\n", s.imageCRC(ctx))
	s.printf("Bootloader Version: %s\r\n", id.BootloaderVersion)
	s.printf("Library Version: %s\r\n", id.LibraryVersion)
	s.printf("APP Version: %s\r\n", id.AppVersion)
	s.printf("Driver: %s\r\n", id.DriverVersion)
}

// imageCRC never returns a partial digest: any failure prints "error".
func (s *Session) imageCRC(ctx context.Context) string {
	if s.cfg.Streamer == nil {
		return "error"
	}
	start := time.Now()
	digest, err := s.cfg.Streamer.Checksum(ctx, s.cfg.ImageRegion)
	if err != nil {
		s.logger.WithError(err).WithField("region", s.cfg.ImageRegion).Error("image checksum failed")
		return "error"
	}
	s.logger.WithFields(logrus.Fields{
		"region":  s.cfg.ImageRegion,
		"crc":     digest.String(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("image checksum")
	return digest.String()
}

func (s *Session) bleCheck(ctx context.Context) {
	ble := s.cfg.BLE

	addr, err := ble.LocalAddress()
	if err != nil {
		s.logger.WithError(err).Warn("bluetooth address unavailable")
		s.printf("Local Bluetooth Address: unavailable\r\n")
	} else {
		s.printf("Local Bluetooth Address: %s\r\n", FormatHardwareAddr(addr))
	}

	var found int
	err = ble.StartScan(s.cfg.Scan, func(a Advertisement) {
		s.mu.Lock()
		defer s.mu.Unlock()
		found++
		s.send(fmt.Sprintf("  ADDR: %s, RSSI: %d\r\n", a.Address, a.RSSI))
	})
	if err != nil {
		s.logger.WithError(err).Error("BLE scan failed to start")
		s.printf("BLE scan failed\r\n\r\n")
		return
	}

	sleep(ctx, s.cfg.Scan.Duration)
	if err := ble.StopScan(); err != nil {
		s.logger.WithError(err).Warn("BLE stop scan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.send("BLE scan complete\r\n")
	if found == 0 {
		s.send("No BLE device found\r\n")
	}
	s.send("\r\n")
	s.logger.WithField("devices", found).Info("BLE scan complete")
}

func (s *Session) wlanCheck(ctx context.Context) {
	wlan := s.cfg.WLAN

	mac, err := wlan.HardwareAddr()
	if err != nil {
		s.logger.WithError(err).Warn("wlan MAC unavailable")
		s.printf("MAC: unavailable\r\n")
	} else {
		s.printf("MAC: %s\r\n", FormatHardwareAddr(mac))
	}

	networks, err := wlan.Scan(ctx)
	if err != nil {
		s.logger.WithError(err).Error("wifi scan failed")
		s.printf("Wi-Fi scan failed\r\n")
		return
	}
	s.printf("Wi-Fi scan found %d networks\r\n", len(networks))
	for _, n := range networks {
		s.printf("  SSID: %s, Signal: %d%%\r\n", n.SSID, n.Signal)
	}
}

func (s *Session) operatorNetwork(ctx context.Context) {
	reader := console.NewLineReader(s.cfg.Transport,
		console.WithLineCapacity(s.cfg.LineCapacity),
		console.WithByteTimeout(s.cfg.ByteTimeout),
	)
	interp := console.NewInterpreter(reader, s.cfg.Transport,
		console.WithPrompt(s.cfg.Prompt),
		console.WithLogger(s.logger),
		console.WithTargetHandler(s.saveTarget),
	)

	ssid, err := interp.Run(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("operator console ended")
		}
		return
	}

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Update(func(c *devconf.SystemConfig) { c.SSID = ssid }); err != nil {
			s.logger.WithError(err).Warn("failed to save ssid")
		}
	}

	if s.cfg.WLAN == nil {
		s.printf("No Wi-Fi interface, cannot join %s\r\n", ssid)
		return
	}

	s.printf("Connecting to %s...\r\n", ssid)
	if err := s.cfg.WLAN.Connect(ctx, ssid); err != nil {
		s.logger.WithError(err).WithField("ssid", ssid).Error("wifi connect failed")
		s.printf("Connect failed: %v\r\n", err)
		return
	}
	s.logger.WithField("ssid", ssid).Info("wifi connected")
	s.printf("Connected to %s\r\n", ssid)
}

func (s *Session) saveTarget(t console.Target) {
	if s.cfg.Store == nil {
		return
	}
	err := s.cfg.Store.Update(func(c *devconf.SystemConfig) {
		c.UseUDP = t.UDP
		c.RemoteAddr = t.Addr
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to save traffic target")
	}
}

func (s *Session) startWatcher(ctx context.Context) {
	if s.cfg.Store == nil {
		s.logger.Info("host driven session without config store, not watching")
		return
	}
	w := devconf.NewWatcher(s.cfg.Transport, s.cfg.Store, s.logger)
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("config watcher stopped")
		}
	}()
}

func (s *Session) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(fmt.Sprintf(format, args...))
}

// send must be called with mu held
func (s *Session) send(str string) {
	if err := s.cfg.Transport.Send([]byte(str)); err != nil {
		s.logger.WithError(err).Debug("console write failed")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
