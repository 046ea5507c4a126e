// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// UDP connection flag
	udpAddr string

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "nereid",
	Short: "Triton Link Controller",
	Long: `Nereid - A CLI tool for driving and monitoring Triton-link actuator nodes.

Provides interactive teleoperation, link health monitoring, raw frame logging,
heartbeat round-trip measurement, and frame capture/replay for 8-channel
thruster controllers speaking the Triton protocol.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  UDP:       --udp 192.168.1.50:8888
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the NEREID_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// UDP connection flag
	rootCmd.PersistentFlags().StringVar(&udpAddr, "udp", "", "UDP peer address (host:port)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
