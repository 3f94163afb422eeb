// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/mfmode/pkg/report"
	"github.com/Thermoquad/mfmode/pkg/transport"
)

// Event log entry
type eventEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type termModel struct {
	link           transport.Transport
	connInfo       string
	connectedAt    time.Time
	output         []byte
	summary        *report.Report
	events         []eventEntry
	maxEvents      int
	viewport       viewport.Model
	input          textinput.Model
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

// Messages
type termTickMsg time.Time
type deviceDataMsg []byte
type linkLostMsg struct {
	err error
}

// formatElapsed formats a duration to a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    int64
		unit string
	}{{days, "day"}, {hours, "hour"}, {minutes, "minute"}, {seconds, "second"}} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

// appendDeviceText folds console bytes into displayable text: CR is
// dropped and BS or DEL erases the previous character on the line.
func appendDeviceText(buf, data []byte) []byte {
	for _, b := range data {
		switch b {
		case '\r':
		case '\b', 0x7F:
			if len(buf) > 0 && buf[len(buf)-1] != '\n' {
				buf = buf[:len(buf)-1]
			}
		default:
			buf = append(buf, b)
		}
	}
	return buf
}

func initialTermModel(link transport.Transport, connInfo string) termModel {
	ti := textinput.New()
	ti.Placeholder = "ssid <name> | tcp <ipv4> | udp <ipv4>"
	ti.CharLimit = 64
	ti.Width = 50
	ti.Prompt = "> "
	ti.Focus()

	vp := viewport.New(76, 14)

	return termModel{
		link:        link,
		connInfo:    connInfo,
		connectedAt: time.Now(),
		events:      make([]eventEntry, 0),
		maxEvents:   100,
		viewport:    vp,
		input:       ti,
		width:       80,
		height:      24,
	}
}

func (m termModel) Init() tea.Cmd {
	return tea.Batch(termTickCmd(), textinput.Blink)
}

func termTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return termTickMsg(t)
	})
}

func (m termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			line := m.input.Value()
			m.input.Reset()
			m.send(line+"\r", fmt.Sprintf("Sent %q", line))
			return m, nil

		case "ctrl+s":
			m.send(report.Sentinel, "Sent host sentinel")
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case termTickMsg:
		return m, termTickCmd()

	case deviceDataMsg:
		m.output = appendDeviceText(m.output, msg)
		text := string(m.output)
		m.viewport.SetContent(text)
		m.viewport.GotoBottom()
		if r, err := report.Parse(text); err == nil {
			if m.summary == nil {
				m.addEvent("Factory test session started", false)
			}
			m.summary = r
		}

	case linkLostMsg:
		m.connectionLost = true
		m.addEvent(fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *termModel) send(s, event string) {
	if m.connectionLost {
		m.addEvent("Not connected", true)
		return
	}
	if err := m.link.Send([]byte(s)); err != nil {
		m.addEvent(fmt.Sprintf("Send failed: %v", err), true)
		return
	}
	m.addEvent(event, false)
}

func (m *termModel) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.height - 16
	if h < 5 {
		h = 5
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
}

func (m *termModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m termModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("MFMODE - FACTORY TEST TERMINAL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Connected for %s | Ctrl+S sends ### | Ctrl+C to quit",
		m.connInfo, formatElapsed(time.Since(m.connectedAt)))))
	s.WriteString("\n\n")

	// Session summary
	if m.summary != nil {
		r := m.summary
		crc := valueStyle.Render(r.AppCRC)
		if !r.Passed() {
			crc = errorStyle.Render(r.AppCRC)
		}
		s.WriteString(boxStyle.Render(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
			labelStyle.Render("Serial:"), valueStyle.Render(r.SerialNumber),
			labelStyle.Render("App CRC:"), crc,
			labelStyle.Render("MAC:"), valueStyle.Render(r.MAC),
			labelStyle.Render("BLE:"), valueStyle.Render(fmt.Sprintf("%d devices", len(r.BLEDevices))),
		)))
		s.WriteString("\n")
	}

	// Device output
	s.WriteString(boxStyle.Width(m.width - 2).Render(m.viewport.View()))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n\n")

	// Events
	start := len(m.events) - 3
	if start < 0 {
		start = 0
	}
	if len(m.events) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.events[start:] {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
		}
	}

	return s.String()
}
