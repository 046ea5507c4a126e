// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

var (
	replayInput string
	replaySpeed float64
	replayDry   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a captured frame stream to the node",
	Long: `Replay a capture file recorded with 'nereid record'.

Frames are re-encoded and transmitted with their original relative timing,
scaled by --speed. With --dry-run the frames are printed instead of sent and
no connection is required.

Replaying a command capture against a live node drives its actuators; the
node's failsafe still engages if the replay ends or stalls.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "capture.nrec", "Capture file path")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayDry, "dry-run", false, "Print frames instead of sending")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySpeed <= 0 {
		return fmt.Errorf("speed must be positive")
	}

	in, err := os.Open(replayInput)
	if err != nil {
		return fmt.Errorf("open capture file: %v", err)
	}
	defer in.Close()

	var conn Connection
	connInfo := "dry run"
	if !replayDry {
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
	}

	fmt.Printf("Nereid - Frame Replay\n")
	fmt.Printf("Input: %s\n", replayInput)
	fmt.Printf("Target: %s\n", connInfo)
	fmt.Printf("Speed: %.2fx\n\n", replaySpeed)

	dec := cbor.NewDecoder(in)
	var prevCapture int64
	sent := 0

	for {
		var rec captureRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read capture record %d: %v", sent+1, err)
		}

		// Pace by the recorded inter-frame gap
		if prevCapture != 0 && rec.CapturedAt > prevCapture {
			gap := time.Duration(float64(rec.CapturedAt-prevCapture) / replaySpeed)
			time.Sleep(gap)
		}
		prevCapture = rec.CapturedAt

		wire, err := triton.EncodeFrame(rec.MsgID, rec.Seq, rec.Ticks, rec.Payload)
		if err != nil {
			return fmt.Errorf("re-encode record %d: %v", sent+1, err)
		}

		if replayDry {
			fmt.Printf("[%d] %s seq=%d ticks=%dms len=%d\n",
				sent+1, triton.FormatMessageID(rec.MsgID), rec.Seq, rec.Ticks, len(rec.Payload))
		} else {
			if _, err := conn.Write(wire); err != nil {
				return fmt.Errorf("send record %d: %v", sent+1, err)
			}
		}
		sent++
	}

	fmt.Printf("\nReplayed %d frames.\n", sent)
	return nil
}
