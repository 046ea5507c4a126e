// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor link health and frame errors",
	Long: `Track frame errors, resync events and link statistics in real time.

This command validates each inbound byte stream and detects:
  - CRC errors and framing corruption
  - Resynchronization events (noise bytes discarded)
  - Unsupported protocol versions and message IDs
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid
frames too.

Supports serial, UDP and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runMonitorTUI(conn, connInfo)
	}
	return runMonitorText(conn, connInfo)
}

// runMonitorTUI runs the monitor in TUI mode
func runMonitorTUI(conn Connection, connInfo string) error {
	stats := triton.NewStatistics()
	rx := triton.NewReassembler(stats)

	m := initialMonitorModel(connInfo, statsInterval, showAll, stats)
	p := tea.NewProgram(m)

	// Reader goroutine
	go func() {
		buf := make([]byte, 128)
		synchronized := false
		var lastCounts monitorErrorCounts

		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err == ErrConnectionClosed {
					p.Send(monitorConnLostMsg{})
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}

			rx.Ingest(buf[:n])
			frames := rx.Drain()

			// Surface newly counted protocol errors after sync; before the
			// first valid frame, noise is expected and stays quiet.
			counts := monitorErrorCounts{
				crc:         stats.RxCRCErrors,
				length:      stats.RxLengthErrors,
				unsupported: stats.RxUnsupported,
				resync:      stats.RxResyncBytes,
			}
			if synchronized {
				if d := counts.crc - lastCounts.crc; d > 0 {
					p.Send(monitorEventMsg{text: fmt.Sprintf("CRC mismatch (%d new)", d), isError: true})
				}
				if d := counts.length - lastCounts.length; d > 0 {
					p.Send(monitorEventMsg{text: fmt.Sprintf("length error (%d new)", d), isError: true})
				}
				if d := counts.unsupported - lastCounts.unsupported; d > 0 {
					p.Send(monitorEventMsg{text: fmt.Sprintf("unsupported frame (%d new)", d), isError: true})
				}
			}
			lastCounts = counts

			for _, frame := range frames {
				if !synchronized {
					synchronized = true
					p.Send(monitorSyncMsg{invalidBytes: int(stats.RxResyncBytes)})
				}
				p.Send(monitorFrameMsg{frame: frame})
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// runMonitorText runs the monitor in text mode
func runMonitorText(conn Connection, connInfo string) error {
	fmt.Printf("Nereid - Link Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := triton.NewStatistics()
	rx := triton.NewReassembler(stats)
	buf := make([]byte, 128)

	// Sync tracking - noise before the first valid frame is expected
	synchronized := false

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	dataChan := make(chan []byte, 10)
	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if err == ErrConnectionClosed {
					close(dataChan)
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			dataChan <- data
		}
	}()

	var lastCRC, lastLen, lastUnsup uint64
	for {
		select {
		case data, ok := <-dataChan:
			if !ok {
				log.Printf("Connection closed")
				return nil
			}

			rx.Ingest(data)
			frames := rx.Drain()

			if synchronized {
				now := time.Now().Format("15:04:05.000")
				if d := stats.RxCRCErrors - lastCRC; d > 0 {
					fmt.Printf("[%s] \033[1;31mCRC ERROR\033[0m (%d new)\n", now, d)
				}
				if d := stats.RxLengthErrors - lastLen; d > 0 {
					fmt.Printf("[%s] \033[1;31mLENGTH ERROR\033[0m (%d new)\n", now, d)
				}
				if d := stats.RxUnsupported - lastUnsup; d > 0 {
					fmt.Printf("[%s] \033[1;33mUNSUPPORTED FRAME\033[0m (%d new)\n", now, d)
				}
			}
			lastCRC, lastLen, lastUnsup = stats.RxCRCErrors, stats.RxLengthErrors, stats.RxUnsupported

			for _, frame := range frames {
				if !synchronized {
					synchronized = true
					if stats.RxResyncBytes > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", stats.RxResyncBytes)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}
				if showAll {
					fmt.Print(triton.FormatFrame(frame))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
