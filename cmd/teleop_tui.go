// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type teleopLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type teleopModel struct {
	tc       *teleopController
	connInfo string
	cfg      triton.ShaperConfig

	current [triton.NumChannels]float64
	target  [triton.NumChannels]float64
	rtt     time.Duration
	haveRTT bool
	stats   *triton.Statistics

	selected  int // 0-based channel index
	dutyInput textinput.Model
	editing   bool

	eventLog      []teleopLogEntry
	maxLogEntries int
	connLost      bool
	width         int
	height        int
	quitting      bool
}

// Messages
type teleopStateMsg struct {
	current [triton.NumChannels]float64
	target  [triton.NumChannels]float64
	rtt     time.Duration
	haveRTT bool
	stats   *triton.Statistics
}
type teleopEventMsg struct {
	text    string
	isError bool
}
type teleopConnLostMsg struct{}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTeleopModel(tc *teleopController, connInfo string, cfg triton.ShaperConfig) teleopModel {
	// Initialize text input for duty entry
	ti := textinput.New()
	ti.Placeholder = "7.5"
	ti.CharLimit = 6
	ti.Width = 10

	m := teleopModel{
		tc:            tc,
		connInfo:      connInfo,
		cfg:           cfg,
		dutyInput:     ti,
		eventLog:      make([]teleopLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i := range m.current {
		m.current[i] = cfg.Mid
		m.target[i] = cfg.Mid
	}
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m teleopModel) Init() tea.Cmd {
	return nil
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case teleopStateMsg:
		m.current = msg.current
		m.target = msg.target
		m.rtt = msg.rtt
		m.haveRTT = msg.haveRTT
		m.stats = msg.stats

	case teleopEventMsg:
		m.addLogEntry(msg.text, msg.isError)

	case teleopConnLostMsg:
		m.connLost = true
		m.addLogEntry("Connection lost", true)
	}

	return m, nil
}

func (m *teleopModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While editing, the text input consumes everything except enter/esc
	if m.editing {
		switch msg.String() {
		case "enter":
			m.editing = false
			m.dutyInput.Blur()
			text := strings.TrimSpace(m.dutyInput.Value())
			m.dutyInput.SetValue("")
			if text == "" {
				return m, nil
			}
			pct, err := strconv.ParseFloat(text, 64)
			if err != nil {
				m.addLogEntry(fmt.Sprintf("invalid duty %q", text), true)
				return m, nil
			}
			if err := m.tc.setTarget(m.selected+1, pct); err != nil {
				m.addLogEntry(fmt.Sprintf("set target: %v", err), true)
				return m, nil
			}
			m.addLogEntry(fmt.Sprintf("CH%d target %.2f%%", m.selected+1, pct), false)
			return m, nil

		case "esc":
			m.editing = false
			m.dutyInput.Blur()
			m.dutyInput.SetValue("")
			return m, nil

		default:
			var cmd tea.Cmd
			m.dutyInput, cmd = m.dutyInput.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < triton.NumChannels-1 {
			m.selected++
		}

	case "left", "h":
		if err := m.tc.nudgeTarget(m.selected+1, -m.cfg.MaxStep); err != nil {
			m.addLogEntry(fmt.Sprintf("nudge: %v", err), true)
		}

	case "right", "l":
		if err := m.tc.nudgeTarget(m.selected+1, m.cfg.MaxStep); err != nil {
			m.addLogEntry(fmt.Sprintf("nudge: %v", err), true)
		}

	case "enter":
		m.editing = true
		m.dutyInput.Focus()
		return m, textinput.Blink

	case "n":
		if err := m.tc.setTarget(m.selected+1, m.cfg.Mid); err != nil {
			m.addLogEntry(fmt.Sprintf("set neutral: %v", err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("CH%d to neutral", m.selected+1), false)
		}

	case " ":
		m.tc.neutralAll()
		m.addLogEntry("EMERGENCY STOP: all channels to neutral", true)
	}

	return m, nil
}

func (m *teleopModel) addLogEntry(message string, isError bool) {
	entry := teleopLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

// dutyBar renders a fixed-width bar with neutral at the center
func dutyBar(pct, min, mid, max float64, width int) string {
	if width < 3 {
		width = 3
	}
	center := width / 2
	pos := center
	if pct > mid {
		pos = center + int((pct-mid)/(max-mid)*float64(width-center-1)+0.5)
	} else if pct < mid {
		pos = center - int((mid-pct)/(mid-min)*float64(center)+0.5)
	}
	if pos < 0 {
		pos = 0
	}
	if pos >= width {
		pos = width - 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == pos:
			sb.WriteString("█")
		case i == center:
			sb.WriteString("┼")
		default:
			sb.WriteString("─")
		}
	}
	return sb.String()
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Ramping to neutral...\n"
	}

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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("237")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("NEREID - TELEOP"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %.0fHz, step %.2f | space=ESTOP, q=quit",
		m.connInfo, m.cfg.ControlHz, m.cfg.MaxStep)))
	s.WriteString("\n\n")

	if m.connLost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	}

	// Channel panel
	chContent := strings.Builder{}
	barWidth := m.width - 46
	if barWidth < 11 {
		barWidth = 11
	}
	for i := 0; i < triton.NumChannels; i++ {
		line := fmt.Sprintf("CH%d %s cur %5.2f%% tgt %5.2f%%",
			i+1, dutyBar(m.current[i], m.cfg.Min, m.cfg.Mid, m.cfg.Max, barWidth),
			m.current[i], m.target[i])
		if i == m.selected {
			chContent.WriteString(selectedStyle.Render("▶ " + line))
		} else {
			chContent.WriteString("  " + line)
		}
		chContent.WriteString("\n")
	}

	if m.editing {
		chContent.WriteString(fmt.Sprintf("\n%s %s",
			labelStyle.Render(fmt.Sprintf("CH%d duty %%:", m.selected+1)),
			m.dutyInput.View()))
	}

	s.WriteString(boxStyle.Render(chContent.String()))
	s.WriteString("\n\n")

	// Link status bar
	linkContent := strings.Builder{}
	if m.haveRTT {
		linkContent.WriteString(fmt.Sprintf("%s %s   ",
			labelStyle.Render("RTT:"),
			valueStyle.Render(m.rtt.Round(time.Microsecond).String())))
	} else {
		linkContent.WriteString(fmt.Sprintf("%s %s   ",
			labelStyle.Render("RTT:"),
			warningStyle.Render("waiting for ack...")))
	}
	if m.stats != nil {
		linkContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
			labelStyle.Render("Cmds:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TxCommands)),
			labelStyle.Render("HBs:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.stats.RxHeartbeatAcks, m.stats.TxHeartbeats)),
			labelStyle.Render("Unmatched:"), func() string {
				if m.stats.UnmatchedAcks > 0 {
					return warningStyle.Render(fmt.Sprintf("%d", m.stats.UnmatchedAcks))
				}
				return valueStyle.Render("0")
			}(),
		))
	}
	s.WriteString(boxStyle.Render(linkContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - triton.NumChannels - 14
	if logHeight < 3 {
		logHeight = 3
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
			timestamp := entry.timestamp.Format("15:04:05.000")
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
