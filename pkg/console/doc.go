// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package console implements the operator side of the factory-test console:
// a line editor that survives a noisy, unframed byte stream and the small
// command grammar the operator types into it.
//
// The line reader echoes every byte it receives, honours backspace and
// delete, and never grows past its fixed capacity no matter what the
// transport delivers. The interpreter prompts, reads, and classifies lines
// against "tcp <addr>", "udp <addr>" and "ssid <name>", in that order, until
// an ssid command ends the interaction.
//
// Basic usage:
//
//	reader := console.NewLineReader(link)
//	interp := console.NewInterpreter(reader, link)
//	ssid, err := interp.Run(ctx)
package console
