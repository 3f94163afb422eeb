// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Broadcast is the all-ones IPv4 address used when a target does not parse.
const Broadcast uint32 = 0xFFFFFFFF

// Command prefixes, tried in this order. The first match wins.
const (
	PrefixTCP  = "tcp "
	PrefixUDP  = "udp "
	PrefixSSID = "ssid "
)

// ErrUnknownCommand is returned for lines matching no prefix
var ErrUnknownCommand = errors.New("console: unknown command")

// Command is a parsed operator line: SendViaTCP, SendViaUDP or JoinNetwork.
type Command interface {
	fmt.Stringer
	isCommand()
}

// SendViaTCP selects TCP traffic to Addr.
type SendViaTCP struct {
	Addr uint32
}

// SendViaUDP selects UDP traffic to Addr.
type SendViaUDP struct {
	Addr uint32
}

// JoinNetwork ends the interaction with the network to associate with.
type JoinNetwork struct {
	Name string
}

func (SendViaTCP) isCommand()  {}
func (SendViaUDP) isCommand()  {}
func (JoinNetwork) isCommand() {}

func (c SendViaTCP) String() string  { return fmt.Sprintf("tcp %s", FormatIPv4(c.Addr)) }
func (c SendViaUDP) String() string  { return fmt.Sprintf("udp %s", FormatIPv4(c.Addr)) }
func (c JoinNetwork) String() string { return fmt.Sprintf("ssid %s", c.Name) }

// ParseCommand classifies line. Matching is case-sensitive and prefix based;
// a line starting with "tcp " is a TCP command even when the address is
// garbage.
func ParseCommand(line string) (Command, error) {
	switch {
	case strings.HasPrefix(line, PrefixTCP):
		return SendViaTCP{Addr: ParseIPv4(line[len(PrefixTCP):])}, nil
	case strings.HasPrefix(line, PrefixUDP):
		return SendViaUDP{Addr: ParseIPv4(line[len(PrefixUDP):])}, nil
	case strings.HasPrefix(line, PrefixSSID):
		// an empty name is passed through; joining reports the failure
		return JoinNetwork{Name: line[len(PrefixSSID):]}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}

// ParseIPv4 parses a dotted-quad address into its numeric (big-endian)
// value, so 192.168.1.10 is 0xC0A8010A rather than the byte-swapped value a
// little-endian inet_addr would show. See DESIGN.md, "Open question
// decisions". Unparseable input and 0.0.0.0 yield Broadcast.
func ParseIPv4(s string) uint32 {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return Broadcast
	}
	b := addr.As4()
	v := binary.BigEndian.Uint32(b[:])
	if v == 0 {
		return Broadcast
	}
	return v
}

// FormatIPv4 renders v in dotted-quad notation.
func FormatIPv4(v uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b).String()
}
