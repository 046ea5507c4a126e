// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid Triton frame",
	Long: `Wait for a valid Triton frame on the connection until timeout.

This command connects to a serial port, UDP peer or WebSocket and waits for
any valid Triton protocol frame. It ignores invalid bytes and waits for a
complete frame passing the CRC check.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for verifying wiring, baud rate and node firmware health.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Nereid - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid Triton frame...\n\n")

	stats := triton.NewStatistics()
	rx := triton.NewReassembler(stats)
	buf := make([]byte, 128)

	// Channel for frame reception
	frameChan := make(chan *triton.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			rx.Ingest(buf[:n])
			frames := rx.Drain()
			if len(frames) > 0 {
				// Got a valid frame!
				if stats.RxResyncBytes > 0 {
					fmt.Printf("(skipped %d invalid bytes before sync)\n", stats.RxResyncBytes)
				}
				frameChan <- frames[0]
				return
			}
		}
	}()

	// Wait for frame or timeout
	select {
	case frame := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", triton.FormatMessageID(frame.MsgID()), frame.MsgID())
		fmt.Printf("  Seq: %d\n", frame.Seq())
		fmt.Printf("  Ticks: %d ms\n", frame.Ticks())
		fmt.Printf("  Length: %d bytes\n", frame.Length())
		fmt.Printf("  CRC: 0x%04X\n", frame.CRC())
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
