// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"bytes"
	"errors"
	"testing"
)

func TestHost_SendCommand(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	values := [NumChannels]uint16{5000, 6000, 7000, 8000, 5000, 4000, 3000, 2000}
	if err := h.SendCommand(values); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	frame, err := DecodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.MsgID() != MsgCommand {
		t.Errorf("msg = 0x%02X", frame.MsgID())
	}
	if frame.Seq() != 1 {
		t.Errorf("first frame seq = %d, expected 1", frame.Seq())
	}
	got, err := frame.Channels()
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if got != values {
		t.Errorf("channel vector mismatch: %v", got)
	}
	if h.Stats().TxCommands != 1 {
		t.Errorf("TxCommands = %d", h.Stats().TxCommands)
	}
}

func TestHost_SeqIncrementsAcrossKinds(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	var neutral [NumChannels]uint16
	for i := range neutral {
		neutral[i] = WireValueNeutral
	}
	if err := h.SendCommand(neutral); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if err := h.SendHeartbeat(); err != nil {
		t.Fatalf("SendHeartbeat: %v", err)
	}
	if err := h.SendCommand(neutral); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}

	r := NewReassembler(nil)
	r.Ingest(buf.Bytes())
	frames := r.Drain()
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	for i, f := range frames {
		if f.Seq() != uint16(i+1) {
			t.Errorf("frame %d seq = %d", i, f.Seq())
		}
	}
}

func TestHost_SendDuty(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	duty := [NumChannels]float64{DutyMid, DutyMid, DutyMid, DutyMid, DutyMid, DutyMid, DutyMid, DutyMax}
	if err := h.SendDuty(duty); err != nil {
		t.Fatalf("SendDuty: %v", err)
	}

	frame, err := DecodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := frame.Channels()
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	for i := 0; i < NumChannels-1; i++ {
		if got[i] != WireValueNeutral {
			t.Errorf("channel %d = %d, expected neutral", i+1, got[i])
		}
	}
	if got[NumChannels-1] != WireValueMax {
		t.Errorf("channel 8 = %d, expected wire max", got[NumChannels-1])
	}
}

func TestHost_HeartbeatRTT(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	if err := h.SendHeartbeat(); err != nil {
		t.Fatalf("SendHeartbeat: %v", err)
	}
	sent, err := DecodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decode sent heartbeat: %v", err)
	}

	// The peer echoes the sequence back
	msgs := h.HandleInbound(EncodeHeartbeatAck(sent.Seq(), 777))
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if _, ok := msgs[0].(HeartbeatAckMessage); !ok {
		t.Fatalf("message type %T", msgs[0])
	}
	if _, ok := h.Tracker().LastRTT(); !ok {
		t.Error("no RTT sample after matching ack")
	}
	if h.Stats().RxHeartbeatAcks != 1 || h.Stats().UnmatchedAcks != 0 {
		t.Errorf("acks=%d unmatched=%d", h.Stats().RxHeartbeatAcks, h.Stats().UnmatchedAcks)
	}
}

func TestHost_UnmatchedAck(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	if err := h.SendHeartbeat(); err != nil {
		t.Fatalf("SendHeartbeat: %v", err)
	}
	h.HandleInbound(EncodeHeartbeatAck(0xBEEF, 0))
	if h.Stats().UnmatchedAcks != 1 {
		t.Errorf("UnmatchedAcks = %d", h.Stats().UnmatchedAcks)
	}
	if _, ok := h.Tracker().LastRTT(); ok {
		t.Error("unmatched ack produced an RTT sample")
	}
}

func TestHost_InboundSplitAcrossCalls(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(&buf)

	if err := h.SendHeartbeat(); err != nil {
		t.Fatalf("SendHeartbeat: %v", err)
	}
	sent, err := DecodeFrame(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	ack := EncodeHeartbeatAck(sent.Seq(), 0)
	if msgs := h.HandleInbound(ack[:5]); len(msgs) != 0 {
		t.Fatalf("partial data produced %d messages", len(msgs))
	}
	msgs := h.HandleInbound(ack[5:])
	if len(msgs) != 1 {
		t.Fatalf("got %d messages after completing frame", len(msgs))
	}
	if h.Stats().RxHeartbeatAcks != 1 {
		t.Errorf("RxHeartbeatAcks = %d", h.Stats().RxHeartbeatAcks)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write(p []byte) (int, error) { return 0, w.err }

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestHost_WriteErrors(t *testing.T) {
	sentinel := errors.New("port gone")
	h := NewHost(failingWriter{err: sentinel})
	if err := h.SendHeartbeat(); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
	// A failed heartbeat is not tracked
	if h.Tracker().Acked() != 0 {
		t.Error("failed heartbeat tracked")
	}
	if h.Stats().TxHeartbeats != 0 {
		t.Errorf("TxHeartbeats = %d after failed send", h.Stats().TxHeartbeats)
	}

	h = NewHost(shortWriter{})
	var neutral [NumChannels]uint16
	if err := h.SendCommand(neutral); err == nil {
		t.Error("short write not reported")
	}
}
