// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package console

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/mfmode/pkg/logging"
	"github.com/Thermoquad/mfmode/pkg/transport"
)

const (
	// DefaultPrompt is printed before every line
	DefaultPrompt = "\r\nMXCHIP_MFMODE> "

	// UsageHint is printed for lines that are not commands
	UsageHint = `Please input as "ssid <ssid_string>"`
)

// Target is a traffic destination chosen with tcp or udp.
type Target struct {
	UDP  bool
	Addr uint32
}

// TargetHandler is called every time the operator selects a target.
type TargetHandler func(Target)

// Interpreter runs the prompt/read/classify loop.
type Interpreter struct {
	reader    *LineReader
	transport transport.Transport
	prompt    string
	onTarget  TargetHandler
	logger    logrus.FieldLogger
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithPrompt replaces DefaultPrompt.
func WithPrompt(prompt string) InterpreterOption {
	return func(i *Interpreter) {
		i.prompt = prompt
	}
}

// WithTargetHandler sets the callback for tcp and udp commands.
func WithTargetHandler(h TargetHandler) InterpreterOption {
	return func(i *Interpreter) {
		i.onTarget = h
	}
}

// WithLogger sets the logger for command tracing.
func WithLogger(l logrus.FieldLogger) InterpreterOption {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInterpreter creates an Interpreter reading lines from reader and
// printing to t.
func NewInterpreter(reader *LineReader, t transport.Transport, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		reader:    reader,
		transport: t,
		prompt:    DefaultPrompt,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run loops until the operator enters an ssid command and returns the
// network name. tcp and udp commands are acknowledged and the loop goes on.
// Anything else prints the usage hint and re-prompts. Run only returns early
// on context cancellation or a transport failure.
func (i *Interpreter) Run(ctx context.Context) (string, error) {
	for {
		if err := i.print(i.prompt); err != nil {
			return "", err
		}

		line, err := i.reader.ReadLine(ctx)
		if err != nil {
			if !errors.Is(err, ErrLineOverflow) {
				return "", err
			}
			i.logger.WithField("capacity", i.reader.Capacity()).Warn("console line overflow")
		}

		var cmd Command
		if err == nil {
			cmd, err = ParseCommand(line)
		}
		if err != nil {
			i.logger.WithError(err).Debug("rejected console line")
			if err := i.print(UsageHint); err != nil {
				return "", err
			}
			continue
		}

		i.logger.WithField("command", cmd.String()).Info("console command")

		switch c := cmd.(type) {
		case SendViaTCP:
			if err := i.selectTarget("TCP", Target{Addr: c.Addr}); err != nil {
				return "", err
			}
		case SendViaUDP:
			if err := i.selectTarget("UDP", Target{UDP: true, Addr: c.Addr}); err != nil {
				return "", err
			}
		case JoinNetwork:
			if err := i.print("\r\n"); err != nil {
				return "", err
			}
			return c.Name, nil
		}
	}
}

func (i *Interpreter) selectTarget(proto string, target Target) error {
	if target.Addr == Broadcast {
		// unparseable addresses land here too
		i.logger.WithField("proto", proto).Warn("traffic target is the broadcast address")
	}
	if err := i.print("\r\n"); err != nil {
		return err
	}
	if err := i.print(fmt.Sprintf("Use %s send packet to 0x%X\r\n", proto, target.Addr)); err != nil {
		return err
	}
	if i.onTarget != nil {
		i.onTarget(target)
	}
	return nil
}

func (i *Interpreter) print(s string) error {
	return i.transport.Send([]byte(s))
}
