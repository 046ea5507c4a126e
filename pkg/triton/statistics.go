// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"fmt"
	"time"
)

// Statistics tracks link reception and transmission counters. Counters only
// ever increase; Reset is the sole way to clear them. Fields may be read
// while the owning engine is running for approximate telemetry, but reads
// are not atomic across fields.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Receive counters
	RxOK           uint64 // valid COMMAND/HEARTBEAT/HEARTBEAT_ACK frames
	RxCRCErrors    uint64
	RxLengthErrors uint64
	RxUnsupported  uint64 // wrong version or unrecognized message ID
	RxResyncBytes  uint64 // noise bytes discarded while hunting for a marker
	RxDropped      uint64 // bytes evicted by receive-buffer overflow

	// Transmit counters
	TxCommands   uint64
	TxHeartbeats uint64
	TxAcks       uint64

	// Heartbeat round trips
	RxHeartbeatAcks uint64
	UnmatchedAcks   uint64

	// Rates (calculated)
	FrameRate float64 // valid frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// CalculateRates recomputes the frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.RxOK) / elapsed
		errorCount := s.RxCRCErrors + s.RxLengthErrors + s.RxUnsupported
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	total := s.RxOK + s.RxCRCErrors + s.RxLengthErrors + s.RxUnsupported
	var okPercent float64
	if total > 0 {
		okPercent = float64(s.RxOK) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.RxOK, okPercent)
	if s.RxCRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d\n", s.RxCRCErrors)
	}
	if s.RxLengthErrors > 0 {
		result += fmt.Sprintf("Length Errors:   %8d\n", s.RxLengthErrors)
	}
	if s.RxUnsupported > 0 {
		result += fmt.Sprintf("Unsupported:     %8d\n", s.RxUnsupported)
	}
	if s.RxResyncBytes > 0 {
		result += fmt.Sprintf("Resync Bytes:    %8d\n", s.RxResyncBytes)
	}
	if s.RxDropped > 0 {
		result += fmt.Sprintf("Dropped Bytes:   %8d\n", s.RxDropped)
	}
	if s.TxCommands+s.TxHeartbeats+s.TxAcks > 0 {
		result += fmt.Sprintf("Tx Cmd/HB/Ack:   %d/%d/%d\n", s.TxCommands, s.TxHeartbeats, s.TxAcks)
	}
	if s.RxHeartbeatAcks > 0 || s.UnmatchedAcks > 0 {
		result += fmt.Sprintf("HB Acks:         %8d (%d unmatched)\n", s.RxHeartbeatAcks, s.UnmatchedAcks)
	}
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset clears all counters and restarts the rate window
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}
