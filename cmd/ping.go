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
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure link round-trip time with HEARTBEAT frames",
	Long: `Send HEARTBEAT frames to the node and wait for HEARTBEAT_ACK.

The node echoes the heartbeat sequence number in its acknowledgement, so each
round trip is individually measured. This verifies:
  - The transport is established and bidirectional
  - The node firmware is alive and processing frames
  - The link latency is within teleoperation bounds

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Nereid - Heartbeat Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	host := triton.NewHost(conn)
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startAcked := host.Tracker().Acked()
		if err := host.SendHeartbeat(); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		// Wait for a matching HEARTBEAT_ACK
		rttChan := make(chan time.Duration, 1)
		errChan := make(chan error, 1)

		go func() {
			buf := make([]byte, 128)
			for {
				n, err := conn.Read(buf)
				if err != nil {
					errChan <- err
					return
				}

				host.HandleInbound(buf[:n])
				if host.Tracker().Acked() > startAcked {
					if rtt, ok := host.Tracker().LastRTT(); ok {
						rttChan <- rtt
						return
					}
				}
			}
		}()

		// Wait for response or timeout
		select {
		case rtt := <-rttChan:
			fmt.Printf("ACK from node, rtt=%v\n", rtt.Round(time.Microsecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			failCount++

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no ack in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d acks received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
