// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for informational
}

// monitorErrorCounts snapshots the reassembler error counters between drains
type monitorErrorCounts struct {
	crc         uint64
	length      uint64
	unsupported uint64
	resync      uint64
}

// Latest decoded command
type commandSnapshot struct {
	timestamp time.Time
	seq       uint16
	ticks     uint32
	values    [triton.NumChannels]uint16
}

// Monitor TUI model
type monitorModel struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *triton.Statistics
	eventLog      []monitorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	connLost      bool
	width         int
	height        int
	quitting      bool

	lastCommand   *commandSnapshot
	lastFrameAt   time.Time
	lastNodeTicks uint32
	haveTicks     bool
}

// Messages
type monitorTickMsg time.Time
type monitorFrameMsg struct {
	frame *triton.Frame
}
type monitorSyncMsg struct {
	invalidBytes int
}
type monitorEventMsg struct {
	text    string
	isError bool
}
type monitorConnLostMsg struct{}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		if days == 1 {
			parts = append(parts, "1 day")
		} else {
			parts = append(parts, fmt.Sprintf("%d days", days))
		}
	}
	if hours > 0 {
		if hours == 1 {
			parts = append(parts, "1 hour")
		} else {
			parts = append(parts, fmt.Sprintf("%d hours", hours))
		}
	}
	if minutes > 0 {
		if minutes == 1 {
			parts = append(parts, "1 minute")
		} else {
			parts = append(parts, fmt.Sprintf("%d minutes", minutes))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
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

func initialMonitorModel(connInfo string, statsInterval int, showAll bool, stats *triton.Statistics) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         stats,
		eventLog:      make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		monitorTickCmd(),
		tea.EnterAltScreen,
	)
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case monitorSyncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case monitorEventMsg:
		m.addLogEntry(msg.text, msg.isError)

	case monitorConnLostMsg:
		m.connLost = true
		m.addLogEntry("Connection lost", true)

	case monitorFrameMsg:
		m.lastFrameAt = time.Now()
		m.lastNodeTicks = msg.frame.Ticks()
		m.haveTicks = true

		if msg.frame.MsgID() == triton.MsgCommand {
			if values, err := msg.frame.Channels(); err == nil {
				m.lastCommand = &commandSnapshot{
					timestamp: time.Now(),
					seq:       msg.frame.Seq(),
					ticks:     msg.frame.Ticks(),
					values:    values,
				}
			}
		}

		if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s seq=%d", triton.FormatMessageID(msg.frame.MsgID()), msg.frame.Seq()), false)
		}
	}

	return m, nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
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

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("NEREID - LINK MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats, 'q' quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All frames"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Sync status
	if m.connLost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	} else if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	m.stats.CalculateRates()
	total := m.stats.RxOK + m.stats.RxCRCErrors + m.stats.RxLengthErrors + m.stats.RxUnsupported
	var validPercent float64
	if total > 0 {
		validPercent = float64(m.stats.RxOK) * 100.0 / float64(total)
	}
	totalErrors := m.stats.RxCRCErrors + m.stats.RxLengthErrors + m.stats.RxUnsupported

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", total)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.RxOK, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", totalErrors)),
	))

	if m.stats.RxCRCErrors > 0 || m.stats.RxLengthErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.RxCRCErrors)),
			statsLabelStyle.Render("Length Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.RxLengthErrors)),
		))
	}

	if m.stats.RxUnsupported > 0 || m.stats.RxResyncBytes > 0 || m.stats.RxDropped > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("Unsupported:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.RxUnsupported)),
			statsLabelStyle.Render("Resync Bytes:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.RxResyncBytes)),
			statsLabelStyle.Render("Dropped:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.RxDropped)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest command section (only shown if one was received)
	if m.lastCommand != nil || m.haveTicks {
		s.WriteString(statsLabelStyle.Render("Latest Frames:"))
		s.WriteString("\n")

		frameContent := strings.Builder{}

		if m.haveTicks {
			frameContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Peer uptime:"), statsValueStyle.Render(formatUptime(uint64(m.lastNodeTicks))),
			))
		}

		if m.lastCommand != nil {
			frameContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render("Command seq:"), statsValueStyle.Render(fmt.Sprintf("%d", m.lastCommand.seq)),
			))
			for i, v := range m.lastCommand.values {
				frameContent.WriteString(fmt.Sprintf("%s %s\n",
					statsLabelStyle.Render(fmt.Sprintf("CH%d:", i+1)),
					statsValueStyle.Render(fmt.Sprintf("%5d (%+.2f)", v, triton.WireToNorm(v))),
				))
			}
		}

		s.WriteString(boxStyle.Render(frameContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
