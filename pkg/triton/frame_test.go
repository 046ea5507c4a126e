// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// ============================================================
// Encoder Tests
// ============================================================

func TestEncodeFrame_Layout(t *testing.T) {
	payload := []byte{0xDE, 0xAD}
	buf, err := EncodeFrame(MsgExtTelemetry, 0x1234, 0x89ABCDEF, payload)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}

	if len(buf) != HeaderSize+len(payload)+CRCSize {
		t.Fatalf("frame length %d, expected %d", len(buf), HeaderSize+len(payload)+CRCSize)
	}
	if buf[0] != MarkerByte0 || buf[1] != MarkerByte1 {
		t.Errorf("bad start marker 0x%02X%02X", buf[0], buf[1])
	}
	if buf[2] != ProtoVersion1 {
		t.Errorf("version = 0x%02X", buf[2])
	}
	if buf[3] != MsgExtTelemetry {
		t.Errorf("msg id = 0x%02X", buf[3])
	}
	if seq := binary.BigEndian.Uint16(buf[4:6]); seq != 0x1234 {
		t.Errorf("seq = 0x%04X", seq)
	}
	if ticks := binary.BigEndian.Uint32(buf[6:10]); ticks != 0x89ABCDEF {
		t.Errorf("ticks = 0x%08X", ticks)
	}
	if length := binary.BigEndian.Uint16(buf[10:12]); length != 2 {
		t.Errorf("length = %d", length)
	}
	if !bytes.Equal(buf[12:14], payload) {
		t.Errorf("payload = % X", buf[12:14])
	}

	crc := CalculateCRC(buf[2 : 12+len(payload)])
	if got := binary.BigEndian.Uint16(buf[14:16]); got != crc {
		t.Errorf("crc = 0x%04X, expected 0x%04X", got, crc)
	}
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	_, err := EncodeFrame(MsgCommand, 0, 0, make([]byte, MaxPayloadSize+1))
	if err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestEncodeHeartbeat_MinimumFrame(t *testing.T) {
	buf := EncodeHeartbeat(7, 1000)
	if len(buf) != MinFrameLen {
		t.Errorf("heartbeat frame length %d, expected %d", len(buf), MinFrameLen)
	}
	frame, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if frame.MsgID() != MsgHeartbeat || frame.Seq() != 7 || frame.Ticks() != 1000 || frame.Length() != 0 {
		t.Errorf("decoded heartbeat mismatch: %+v", frame)
	}
}

func TestEncodeHeartbeatAck_EchoesSeq(t *testing.T) {
	buf := EncodeHeartbeatAck(0xFFFF, 42)
	frame, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if frame.MsgID() != MsgHeartbeatAck || frame.Seq() != 0xFFFF {
		t.Errorf("ack mismatch: msg=0x%02X seq=%d", frame.MsgID(), frame.Seq())
	}
}

// ============================================================
// Round-Trip Tests
// ============================================================

func TestCommandRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values [NumChannels]uint16
	}{
		{"all neutral", [NumChannels]uint16{5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000}},
		{"full forward", [NumChannels]uint16{10000, 10000, 10000, 10000, 10000, 10000, 10000, 10000}},
		{"full reverse", [NumChannels]uint16{0, 0, 0, 0, 0, 0, 0, 0}},
		{"mixed", [NumChannels]uint16{0, 1250, 2500, 5000, 6000, 7500, 9999, 10000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := EncodeCommand(99, 123456, tt.values)
			frame, err := DecodeFrame(buf)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			got, err := frame.Channels()
			if err != nil {
				t.Fatalf("channels error: %v", err)
			}
			if got != tt.values {
				t.Errorf("round trip mismatch:\n got  %v\n want %v", got, tt.values)
			}
		})
	}
}

func TestEncodeCommand_ClampsToWireMax(t *testing.T) {
	var values [NumChannels]uint16
	values[3] = 60000
	buf := EncodeCommand(1, 0, values)
	frame, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	got, err := frame.Channels()
	if err != nil {
		t.Fatalf("channels error: %v", err)
	}
	if got[3] != WireValueMax {
		t.Errorf("value not clamped: %d", got[3])
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecodeFrame_ShortBuffer(t *testing.T) {
	buf := EncodeHeartbeat(1, 1)
	_, err := DecodeFrame(buf[:MinFrameLen-1])
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

func TestDecodeFrame_BadMarker(t *testing.T) {
	buf := EncodeHeartbeat(1, 1)
	buf[0] = 0x00
	_, err := DecodeFrame(buf)
	if !errors.Is(err, ErrBadMarker) {
		t.Errorf("expected ErrBadMarker, got %v", err)
	}
}

func TestDecodeFrame_BadVersion(t *testing.T) {
	buf := EncodeHeartbeat(1, 1)
	buf[2] = 0x02
	_, err := DecodeFrame(buf)
	if !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}

func TestDecodeFrame_BadLength(t *testing.T) {
	buf := EncodeHeartbeat(1, 1)
	binary.BigEndian.PutUint16(buf[10:12], MaxPayloadSize+1)
	_, err := DecodeFrame(buf)
	if !errors.Is(err, ErrBadLength) {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func TestDecodeFrame_SingleBitFlipRejected(t *testing.T) {
	values := [NumChannels]uint16{1000, 2000, 3000, 4000, 6000, 7000, 8000, 9000}
	original := EncodeCommand(0x0102, 0x03040506, values)

	for i := range original {
		for bit := 0; bit < 8; bit++ {
			corrupted := make([]byte, len(original))
			copy(corrupted, original)
			corrupted[i] ^= 1 << bit
			if _, err := DecodeFrame(corrupted); err == nil {
				t.Errorf("decode accepted frame with byte %d bit %d flipped", i, bit)
			}
		}
	}
}

func TestDecodeFrame_IgnoresTrailingBytes(t *testing.T) {
	buf := EncodeHeartbeat(5, 5)
	buf = append(buf, 0xFF, 0xFF, 0xFF)
	frame, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if frame.MsgID() != MsgHeartbeat {
		t.Errorf("msg id = 0x%02X", frame.MsgID())
	}
}

func TestChannels_RejectsNonCommand(t *testing.T) {
	frame, err := DecodeFrame(EncodeHeartbeat(1, 1))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if _, err := frame.Channels(); err == nil {
		t.Error("expected error extracting channels from heartbeat")
	}
}

// ============================================================
// Value Mapping Tests
// ============================================================

func TestValueMapping(t *testing.T) {
	if n := WireToNorm(WireValueNeutral); n != 0 {
		t.Errorf("neutral wire value should map to 0, got %f", n)
	}
	if n := WireToNorm(0); n != -1 {
		t.Errorf("wire 0 should map to -1, got %f", n)
	}
	if n := WireToNorm(WireValueMax); n != 1 {
		t.Errorf("wire max should map to +1, got %f", n)
	}
	if v := NormToWire(0); v != WireValueNeutral {
		t.Errorf("norm 0 should map to neutral, got %d", v)
	}
	if v := NormToWire(2.0); v != WireValueMax {
		t.Errorf("out-of-range norm should clamp, got %d", v)
	}
	if v := DutyToWire(DutyMid); v != WireValueNeutral {
		t.Errorf("mid duty should map to neutral wire, got %d", v)
	}
	if v := DutyToWire(DutyMax); v != WireValueMax {
		t.Errorf("max duty should map to wire max, got %d", v)
	}
	if v := DutyToWire(DutyMin); v != 0 {
		t.Errorf("min duty should map to wire 0, got %d", v)
	}
	if pct := WireToDuty(WireValueNeutral); pct != DutyMid {
		t.Errorf("neutral wire should map to mid duty, got %f", pct)
	}
}
