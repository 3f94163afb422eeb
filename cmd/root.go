// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/config"
	"github.com/Thermoquad/mfmode/pkg/logging"
)

var (
	configFile string

	v   = config.New()
	cfg *config.Config

	logger    *logrus.Logger
	logCloser io.Closer
)

// flagKeys maps flags onto configuration keys. Subcommand flags are listed
// here too; flags a command does not have are skipped.
var flagKeys = map[string]string{
	"port":          "transport.port",
	"baud":          "transport.baud",
	"url":           "transport.url",
	"username":      "transport.username",
	"no-ssl-verify": "transport.no_ssl_verify",
	"log-level":     "log.level",
	"log-file":      "log.file.path",

	"factory-test": "factory_test.enabled",
	"image":        "image.path",
	"region":       "image.region",
	"window":       "image.window",
	"store":        "store.path",
	"bluetooth":    "bluetooth.enabled",
	"wlan":         "wlan.interface",

	"idle-timeout": "host.idle_timeout",
	"timeout":      "host.timeout",
	"report":       "host.report",
	"mqtt-broker":  "mqtt.broker",
	"mqtt-topic":   "mqtt.topic",
}

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "mfmode",
	Short: "MXCHIP manufacturing test console",
	Long: `mfmode - factory-test mode for MXCHIP-style Wi-Fi/BLE modules.

On the device it runs the factory-test session: prints identity and the
application image CRC, checks the radios and then either accepts operator
commands or, when the host sent "###" at boot, watches for configuration
packets. On the line station it drives that session and records a report.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Terminal:  neither (console command only, uses stdin/stdout)

Settings are read from mfmode.yaml (working directory or /etc/mfmode, or
--config), then MFMODE_* environment variables, then flags.

For WebSocket authentication, the password is read from the MFMODE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default mfmode.yaml in . or /etc/mfmode)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Also log to this file, rotated by size")
}

func loadSettings(cmd *cobra.Command, args []string) error {
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	// naming a log file or wlan interface on the command line enables it
	if f := cmd.Flags().Lookup("log-file"); f != nil && f.Changed {
		v.Set("log.file.enabled", true)
	}
	if f := cmd.Flags().Lookup("wlan"); f != nil && f.Changed {
		v.Set("wlan.enabled", true)
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if loaded.Identity.LibraryVersion == "" {
		loaded.Identity.LibraryVersion = version
	}
	cfg = loaded

	logger, logCloser, err = logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.WithField("file", used).Debug("configuration loaded")
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
