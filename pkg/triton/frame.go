// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"fmt"
	"time"
)

// Frame represents a decoded Triton protocol frame
type Frame struct {
	version   uint8
	msgID     uint8
	seq       uint16
	ticks     uint32
	payload   []byte
	crc       uint16
	timestamp time.Time
}

// NewFrame creates a frame with the given fields. The CRC is recorded as-is;
// use the encoder to produce a checksummed wire image.
func NewFrame(msgID uint8, seq uint16, ticks uint32, payload []byte) *Frame {
	return &Frame{
		version:   ProtoVersion1,
		msgID:     msgID,
		seq:       seq,
		ticks:     ticks,
		payload:   payload,
		timestamp: time.Now(),
	}
}

// Version returns the protocol version byte
func (f *Frame) Version() uint8 {
	return f.version
}

// MsgID returns the frame's message ID
func (f *Frame) MsgID() uint8 {
	return f.msgID
}

// Seq returns the sender-assigned sequence number. It wraps silently and is
// used only for heartbeat/ack correlation, never for reordering.
func (f *Frame) Seq() uint16 {
	return f.seq
}

// Ticks returns the sender-local monotonic millisecond tick. It is never
// compared across endpoints, only echoed back in acknowledgements.
func (f *Frame) Ticks() uint32 {
	return f.ticks
}

// Length returns the payload byte count
func (f *Frame) Length() int {
	return len(f.payload)
}

// Payload returns the raw payload bytes
func (f *Frame) Payload() []byte {
	return f.payload
}

// CRC returns the frame's checksum as received or computed
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the frame's local decode timestamp
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Channels extracts the 8 channel values from a COMMAND payload.
// Values are clamped to the 0..10000 wire range.
func (f *Frame) Channels() ([NumChannels]uint16, error) {
	var out [NumChannels]uint16
	if f.msgID != MsgCommand {
		return out, fmt.Errorf("not a command frame (msg 0x%02X)", f.msgID)
	}
	if len(f.payload) != CommandPayloadSize {
		return out, fmt.Errorf("command payload length %d (expected %d)", len(f.payload), CommandPayloadSize)
	}
	for i := 0; i < NumChannels; i++ {
		v := uint16(f.payload[i*2])<<8 | uint16(f.payload[i*2+1])
		if v > WireValueMax {
			v = WireValueMax
		}
		out[i] = v
	}
	return out, nil
}
