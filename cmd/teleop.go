// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	teleopCtrlHz     float64
	teleopHBInterval int
	teleopMaxStep    float64
	teleopGroupAll   bool
	teleopNoRevProt  bool
)

var teleopCmd = &cobra.Command{
	Use:   "teleop",
	Short: "Interactive TUI for driving an actuator node",
	Long: `Drive an 8-channel Triton actuator node via an interactive terminal UI.

Commands are shaped through a slew limiter before transmission: each control
tick moves every channel at most --max-step duty points toward its target,
reversals pass through neutral, and under A/B alternation channels 1-4 and
5-8 update on alternating ticks to smooth aggregate current draw.

Heartbeats run alongside the command stream and the measured round-trip time
is displayed live. On exit all channels ramp back to neutral before the
connection closes.

Keys:
  up/down      select channel
  left/right   nudge the selected channel's target
  enter        type an exact duty % for the selected channel
  n            selected channel to neutral
  space        EMERGENCY STOP (all channels to neutral)
  q            ramp to neutral and quit

Supports serial, UDP and WebSocket connections.`,
	RunE: runTeleop,
}

func init() {
	rootCmd.AddCommand(teleopCmd)
	teleopCmd.Flags().Float64Var(&teleopCtrlHz, "ctrl-hz", 50.0, "Control loop rate (Hz)")
	teleopCmd.Flags().IntVar(&teleopHBInterval, "hb-interval", 200, "Heartbeat interval (milliseconds)")
	teleopCmd.Flags().Float64Var(&teleopMaxStep, "max-step", 0.2, "Max duty change per tick (percent points)")
	teleopCmd.Flags().BoolVar(&teleopGroupAll, "group-all", false, "Update all channels every tick instead of A/B alternation")
	teleopCmd.Flags().BoolVar(&teleopNoRevProt, "no-reverse-protect", false, "Allow reversals without passing through neutral")
}

// teleopController owns the host endpoint and shaper, serializing access from
// the control-loop goroutine and TUI key handlers behind one mutex.
type teleopController struct {
	mu     sync.Mutex
	host   *triton.Host
	shaper *triton.Shaper
	conn   Connection
	p      *tea.Program
	done   chan struct{}
}

func (tc *teleopController) setTarget(ch int, pct float64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.shaper.SetTarget(ch, pct)
}

func (tc *teleopController) nudgeTarget(ch int, delta float64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.shaper.SetTarget(ch, tc.shaper.Target(ch)+delta)
}

func (tc *teleopController) neutralAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.shaper.SetAllTargetsNeutral()
}

func (tc *teleopController) snapshot() (current, target [triton.NumChannels]float64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.shaper.Snapshot()
}

func (tc *teleopController) step() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.shaper.Step()
}

func (tc *teleopController) heartbeat() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.host.SendHeartbeat()
}

func (tc *teleopController) lastRTT() (time.Duration, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.host.Tracker().LastRTT()
}

// rampToNeutral runs the shutdown ramp inline, bounded by the worst-case
// step count so a wedged link cannot stall exit forever.
func (tc *teleopController) rampToNeutral() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	_ = tc.shaper.RampToNeutral(0)
}

func runTeleop(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	host := triton.NewHost(conn)

	cfg := triton.DefaultShaperConfig()
	cfg.ControlHz = teleopCtrlHz
	cfg.MaxStep = teleopMaxStep
	if teleopGroupAll {
		cfg.GroupMode = triton.GroupAll
	}
	cfg.ReverseProtection = !teleopNoRevProt

	shaper, err := triton.NewShaper(cfg, host.SendDuty)
	if err != nil {
		conn.Close()
		return fmt.Errorf("shaper init: %v", err)
	}

	tc := &teleopController{
		host:   host,
		shaper: shaper,
		conn:   conn,
		done:   make(chan struct{}),
	}

	m := initialTeleopModel(tc, connInfo, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	tc.p = p

	go tc.controlLoop(cfg)
	go tc.heartbeatLoop()
	go tc.readerLoop()

	if _, err := p.Run(); err != nil {
		close(tc.done)
		conn.Close()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(tc.done)
	tc.rampToNeutral()
	conn.Close()
	return nil
}

// controlLoop steps the shaper at the configured rate and posts state
// snapshots to the TUI at display rate.
func (tc *teleopController) controlLoop(cfg triton.ShaperConfig) {
	stepTicker := time.NewTicker(time.Duration(float64(time.Second) / cfg.ControlHz))
	defer stepTicker.Stop()
	displayTicker := time.NewTicker(100 * time.Millisecond)
	defer displayTicker.Stop()

	for {
		select {
		case <-tc.done:
			return

		case <-stepTicker.C:
			if err := tc.step(); err != nil {
				tc.p.Send(teleopEventMsg{text: fmt.Sprintf("send failed: %v", err), isError: true})
			}

		case <-displayTicker.C:
			current, target := tc.snapshot()
			rtt, haveRTT := tc.lastRTT()
			tc.p.Send(teleopStateMsg{
				current: current,
				target:  target,
				rtt:     rtt,
				haveRTT: haveRTT,
				stats:   tc.host.Stats(),
			})
		}
	}
}

// heartbeatLoop sends heartbeats on a slower period than the command stream.
func (tc *teleopController) heartbeatLoop() {
	ticker := time.NewTicker(time.Duration(teleopHBInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-tc.done:
			return
		case <-ticker.C:
			if err := tc.heartbeat(); err != nil {
				tc.p.Send(teleopEventMsg{text: fmt.Sprintf("heartbeat failed: %v", err), isError: true})
			}
		}
	}
}

// readerLoop drains inbound bytes so heartbeat acks update the RTT tracker.
func (tc *teleopController) readerLoop() {
	buf := make([]byte, 128)
	for {
		select {
		case <-tc.done:
			return
		default:
		}

		n, err := tc.conn.Read(buf)
		if err != nil {
			select {
			case <-tc.done:
				return
			default:
			}
			if err == ErrConnectionClosed {
				tc.p.Send(teleopConnLostMsg{})
				return
			}
			// Brief pause before retry on transient errors (e.g., serial)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		tc.mu.Lock()
		msgs := tc.host.HandleInbound(buf[:n])
		tc.mu.Unlock()

		for _, msg := range msgs {
			if unsup, ok := msg.(triton.UnsupportedMessage); ok {
				tc.p.Send(teleopEventMsg{
					text:    fmt.Sprintf("unsupported frame id 0x%02X from node", unsup.ID),
					isError: false,
				})
			}
		}
	}
}
