// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mfmode/pkg/report"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Drive a device through the host-controlled factory test",
	Long: `Drive the factory test from the manufacturing-line station.

The station repeatedly sends "###" until the device starts printing, which
selects the host-driven session. The diagnostics are collected until the
device has been silent for --idle-timeout, parsed, and written as a YAML
report to --report (stdout when empty). With --mqtt-broker set the report is
also published to <mqtt-topic>/<serial number>.

Exit codes:
  0 - Report recorded and the device passed
  1 - Device failed, no response, or connection error

Supports both serial and WebSocket connections.`,
	RunE: runHost,
}

var hostEcho bool

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.Flags().Duration("idle-timeout", 5*time.Second, "Stop collecting after this much silence")
	hostCmd.Flags().Duration("timeout", 60*time.Second, "Give up after this long")
	hostCmd.Flags().String("report", "", "Write the YAML report to this file")
	hostCmd.Flags().String("mqtt-broker", "", "Publish the report to this broker (mqtt://host:1883)")
	hostCmd.Flags().String("mqtt-topic", "mfmode/reports", "Topic prefix for published reports")
	hostCmd.Flags().BoolVar(&hostEcho, "echo", false, "Echo device output to stderr while collecting")
}

func runHost(cmd *cobra.Command, args []string) error {
	link, err := OpenConnection(false)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Host.Timeout)
	defer cancel()

	log := logger.WithField("connection", link.Info())
	log.Info("waiting for device")

	opts := report.CollectOptions{IdleTimeout: cfg.Host.IdleTimeout}
	if hostEcho {
		opts.OnData = func(b []byte) { os.Stderr.Write(b) }
	}

	transcript, err := report.Collect(ctx, link, opts)
	if err != nil {
		return err
	}

	r, err := report.Parse(transcript)
	if err != nil {
		return err
	}
	log = log.WithField("serial", r.SerialNumber)

	data, err := r.YAML()
	if err != nil {
		return err
	}
	if cfg.Host.Report == "" {
		os.Stdout.Write(data)
	} else if err := os.WriteFile(cfg.Host.Report, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.MQTT.Broker != "" {
		pub, err := report.NewPublisher(report.PublisherConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			QoS:      byte(cfg.MQTT.QoS),
			Timeout:  cfg.MQTT.Timeout,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.Publish(r); err != nil {
			return err
		}
		log.WithField("topic", pub.Topic(r)).Info("report published")
	}

	if !r.Passed() {
		log.WithField("app_crc", r.AppCRC).Error("device failed")
		return fmt.Errorf("device %s failed the factory test", r.SerialNumber)
	}
	log.WithField("app_crc", r.AppCRC).Info("device passed")
	return nil
}
