// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"fmt"
	"io"
	"time"
)

// Host is the controller-side link endpoint. It owns the outbound sequence
// counter and monotonic tick epoch, encodes command and heartbeat frames onto
// a transport writer, and routes inbound acknowledgements to its heartbeat
// tracker. "Latest command wins": there is no queueing or retransmission.
//
// All methods are intended for a single control-loop goroutine.
type Host struct {
	w     io.Writer
	seq   uint16
	epoch time.Time

	tracker *HeartbeatTracker
	rx      *Reassembler
	stats   *Statistics
}

// NewHost creates a host endpoint writing frames to w.
func NewHost(w io.Writer) *Host {
	stats := NewStatistics()
	return &Host{
		w:       w,
		epoch:   time.Now(),
		tracker: NewHeartbeatTracker(),
		rx:      NewReassembler(stats),
		stats:   stats,
	}
}

// Stats returns the shared statistics tracker
func (h *Host) Stats() *Statistics {
	return h.stats
}

// Tracker returns the heartbeat round-trip tracker
func (h *Host) Tracker() *HeartbeatTracker {
	return h.tracker
}

// Ticks returns milliseconds since the host started, for the TICKS field.
// The peer never compares this against its own clock, only echoes it.
func (h *Host) Ticks() uint32 {
	return uint32(time.Since(h.epoch) / time.Millisecond)
}

func (h *Host) nextSeq() uint16 {
	h.seq++ // wraps silently
	return h.seq
}

func (h *Host) write(frame []byte) error {
	n, err := h.w.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(frame))
	}
	return nil
}

// SendCommand transmits one COMMAND frame carrying the full channel vector
// in wire units (0..10000).
func (h *Host) SendCommand(values [NumChannels]uint16) error {
	if err := h.write(EncodeCommand(h.nextSeq(), h.Ticks(), values)); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	h.stats.TxCommands++
	return nil
}

// SendDuty converts a duty-percent vector to wire units and transmits it.
// Its signature matches the shaper's EmitFunc, so a Host can sit directly
// downstream of a Shaper.
func (h *Host) SendDuty(duty [NumChannels]float64) error {
	var values [NumChannels]uint16
	for i, pct := range duty {
		values[i] = DutyToWire(pct)
	}
	return h.SendCommand(values)
}

// SendHeartbeat transmits an empty HEARTBEAT frame and starts a round-trip
// measurement for its sequence number.
func (h *Host) SendHeartbeat() error {
	seq := h.nextSeq()
	if err := h.write(EncodeHeartbeat(seq, h.Ticks())); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	h.stats.TxHeartbeats++
	h.tracker.Track(seq, time.Now())
	return nil
}

// HandleInbound feeds received transport bytes through the reassembler and
// dispatches any complete frames, updating the heartbeat tracker for
// acknowledgements. The decoded messages are returned for display; commands
// and heartbeats from the peer are unexpected on the host side and come back
// as-is for the caller to log.
func (h *Host) HandleInbound(data []byte) []Message {
	h.rx.Ingest(data)

	var msgs []Message
	for _, frame := range h.rx.Drain() {
		msg, err := Classify(frame)
		if err != nil {
			h.stats.RxLengthErrors++
			continue
		}
		if ack, ok := msg.(HeartbeatAckMessage); ok {
			if _, matched := h.tracker.OnAck(ack.Frame, time.Now()); matched {
				h.stats.RxHeartbeatAcks++
			} else {
				h.stats.UnmatchedAcks++
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs
}
