// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens a serial port at 8N1 with the given baud rate.
func OpenSerial(portName string, baudRate int) (*Link, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return NewLink(port, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)), nil
}

// ListSerialPorts returns the serial ports known to the OS.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
