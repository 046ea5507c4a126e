// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/nereid/pkg/triton"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

var (
	recordOutput string
)

// captureRecord is one captured frame in a .nrec file: a CBOR stream of
// these records, in arrival order.
type captureRecord struct {
	CapturedAt int64  `cbor:"1,keyasint"` // unix nanoseconds
	MsgID      uint8  `cbor:"2,keyasint"`
	Seq        uint16 `cbor:"3,keyasint"`
	Ticks      uint32 `cbor:"4,keyasint"`
	Payload    []byte `cbor:"5,keyasint"`
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture valid frames to a file for later replay",
	Long: `Record all valid Triton frames from the connection to a capture file.

Frames are stored as a CBOR stream with arrival timestamps, so a capture can
be replayed later with original pacing. Invalid bytes are discarded by the
reassembler and never recorded.

Stop recording with Ctrl+C; the summary shows what was captured.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "capture.nrec", "Capture file path")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := os.Create(recordOutput)
	if err != nil {
		return fmt.Errorf("create capture file: %v", err)
	}
	defer out.Close()

	fmt.Printf("Nereid - Frame Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", recordOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	stats := triton.NewStatistics()
	rx := triton.NewReassembler(stats)
	enc := cbor.NewEncoder(out)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	dataChan := make(chan []byte, 10)
	go func() {
		buf := make([]byte, 128)
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

	recorded := 0
	for {
		select {
		case data, ok := <-dataChan:
			if !ok {
				fmt.Printf("\nConnection closed. Recorded %d frames.\n", recorded)
				return nil
			}
			rx.Ingest(data)
			for _, frame := range rx.Drain() {
				rec := captureRecord{
					CapturedAt: time.Now().UnixNano(),
					MsgID:      frame.MsgID(),
					Seq:        frame.Seq(),
					Ticks:      frame.Ticks(),
					Payload:    frame.Payload(),
				}
				if err := enc.Encode(rec); err != nil {
					return fmt.Errorf("write capture record: %v", err)
				}
				recorded++
			}

		case <-sigChan:
			fmt.Printf("\nStopped. Recorded %d frames.\n", recorded)
			fmt.Print(stats.String())
			return nil
		}
	}
}
