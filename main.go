// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Nereid - Triton Link Controller
//
// A CLI tool for driving and monitoring Triton-link actuator nodes:
// teleoperation, link monitoring, heartbeat ping, and frame capture/replay.

package main

import (
	"os"

	"github.com/Thermoquad/nereid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
