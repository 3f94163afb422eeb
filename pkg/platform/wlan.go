// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Thermoquad/mfmode/pkg/mfg"
)

// ErrNoSSID is returned when asked to join a network with an empty name.
var ErrNoSSID = errors.New("no ssid given")

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(ee.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// NetworkManager drives a Wi-Fi interface through nmcli.
type NetworkManager struct {
	Interface string
	Password  string
	Run       Runner
}

// NewNetworkManager returns a NetworkManager for iface using ExecRunner.
func NewNetworkManager(iface, password string) *NetworkManager {
	return &NetworkManager{Interface: iface, Password: password, Run: ExecRunner}
}

// HardwareAddr implements mfg.WLAN.
func (n *NetworkManager) HardwareAddr() (net.HardwareAddr, error) {
	ifi, err := net.InterfaceByName(n.Interface)
	if err != nil {
		return nil, err
	}
	return ifi.HardwareAddr, nil
}

// Scan implements mfg.WLAN. Hidden networks are skipped.
func (n *NetworkManager) Scan(ctx context.Context) ([]mfg.Network, error) {
	out, err := n.Run(ctx, "nmcli", "-t", "-f", "SSID,SIGNAL,SECURITY",
		"device", "wifi", "list", "ifname", n.Interface, "--rescan", "yes")
	if err != nil {
		return nil, fmt.Errorf("wifi scan: %w", err)
	}

	var networks []mfg.Network
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := splitTerse(line)
		if len(fields) < 3 || fields[0] == "" {
			continue
		}
		signal, _ := strconv.Atoi(fields[1])
		networks = append(networks, mfg.Network{
			SSID:     fields[0],
			Signal:   signal,
			Security: fields[2],
		})
	}
	return networks, nil
}

// Connect implements mfg.WLAN.
func (n *NetworkManager) Connect(ctx context.Context, ssid string) error {
	if ssid == "" {
		return ErrNoSSID
	}
	args := []string{"device", "wifi", "connect", ssid, "ifname", n.Interface}
	if n.Password != "" {
		args = append(args, "password", n.Password)
	}
	if _, err := n.Run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("join %s: %w", ssid, err)
	}
	return nil
}

// splitTerse splits one line of nmcli -t output on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}
