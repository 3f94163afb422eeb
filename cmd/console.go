// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/devconf"
	"github.com/Thermoquad/mfmode/pkg/image"
	"github.com/Thermoquad/mfmode/pkg/mfg"
	"github.com/Thermoquad/mfmode/pkg/mode"
	"github.com/Thermoquad/mfmode/pkg/platform"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the factory-test session on this device",
	Long: `Run the device side of the factory test.

The session starts only when the factory-test gate is open: --factory-test,
factory_test.enabled in the config, or the marker file being present. Within
100ms the host may send "###" to select the host-driven session; otherwise an
operator console is offered:

  tcp <ipv4>     send test traffic over TCP to <ipv4>
  udp <ipv4>     send test traffic over UDP to <ipv4>
  ssid <name>    join Wi-Fi network <name>

Without --port or --url the session runs on this terminal. The session idles
after the tests until interrupted with Ctrl+C.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Bool("factory-test", false, "Force the factory-test gate open")
	consoleCmd.Flags().String("image", "", "Flash dump or image file holding the application")
	consoleCmd.Flags().String("store", "", "Device configuration store path")
	consoleCmd.Flags().Bool("bluetooth", false, "Run the BLE address and scan checks")
	consoleCmd.Flags().String("wlan", "", "Wi-Fi interface for the MAC, scan and join steps")
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gate mode.BootSignal = mode.MarkerFileSignal(cfg.FactoryTest.MarkerFile)
	if cfg.FactoryTest.Enabled {
		gate = mode.StaticSignal(true)
	}
	if !gate.ShouldEnterFactoryTest() {
		logger.WithField("marker", cfg.FactoryTest.MarkerFile).Info("factory test not requested")
		return nil
	}

	link, err := OpenConnection(true)
	if err != nil {
		return err
	}
	defer link.Close()
	logger.WithField("connection", link.Info()).Info("console opened")

	detector := mode.NewDetector(link,
		mode.WithTimeout(cfg.FactoryTest.SentinelTimeout),
		mode.WithLogger(logger),
	)
	m := detector.Detect(ctx, gate)

	sessionCfg := mfg.Config{
		Transport: link,
		Identity: mfg.Identity{
			SerialNumber:      platform.SerialNumber(cfg.Identity.SerialNumber),
			BootloaderVersion: cfg.Identity.BootloaderVersion,
			LibraryVersion:    cfg.Identity.LibraryVersion,
			AppVersion:        cfg.Identity.AppVersion,
			DriverVersion:     cfg.Identity.DriverVersion,
		},
		ImageRegion: cfg.Image.Region,
		Scan: mfg.ScanSettings{
			Passive:          true,
			FilterDuplicates: cfg.Bluetooth.FilterDuplicates,
			Duration:         cfg.Bluetooth.ScanDuration,
		},
		Prompt:       cfg.Console.Prompt,
		LineCapacity: cfg.Console.LineCapacity,
		ByteTimeout:  cfg.Console.ByteTimeout,
		Logger:       logger,
	}

	if cfg.Image.Path != "" {
		flash, err := openImage()
		if err != nil {
			logger.WithError(err).Error("application image unavailable")
		} else {
			defer flash.Close()
			sessionCfg.Streamer = image.NewStreamer(flash,
				image.WithWindowSize(cfg.Image.Window),
				image.WithLogger(logger),
			)
		}
	}

	if cfg.Bluetooth.Enabled {
		sessionCfg.BLE = platform.NewBluetooth(cfg.Bluetooth.Address, logger)
	}
	if cfg.WLAN.Enabled {
		sessionCfg.WLAN = platform.NewNetworkManager(cfg.WLAN.Interface, cfg.WLAN.Password)
	}
	if cfg.Store.Path != "" {
		store, err := devconf.Open(cfg.Store.Path)
		if err != nil {
			logger.WithError(err).Warn("device configuration store unavailable")
		} else {
			sessionCfg.Store = store
		}
	}

	session, err := mfg.NewSession(sessionCfg)
	if err != nil {
		return err
	}

	if err := session.Run(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("factory test session: %w", err)
	}
	return nil
}

// openImage opens the configured flash dump. Without a partition table the
// whole file is the configured region.
func openImage() (*image.FlashFile, error) {
	partitions := cfg.Image.Partitions
	if len(partitions) == 0 {
		partitions = []image.Partition{{Name: cfg.Image.Region}}
	}
	return image.OpenFlashFile(cfg.Image.Path, partitions)
}
