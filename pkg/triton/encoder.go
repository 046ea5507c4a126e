// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"encoding/binary"
	"fmt"
)

// EncodeFrame builds a complete wire-formatted Triton frame:
// MARKER VER MSG SEQ TICKS LEN PAYLOAD CRC, all integers big-endian.
// The CRC covers VER through the end of the payload, never the marker.
func EncodeFrame(msgID uint8, seq uint16, ticks uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}

	buf := make([]byte, HeaderSize+len(payload)+CRCSize)
	buf[0] = MarkerByte0
	buf[1] = MarkerByte1
	buf[2] = ProtoVersion1
	buf[3] = msgID
	binary.BigEndian.PutUint16(buf[4:6], seq)
	binary.BigEndian.PutUint32(buf[6:10], ticks)
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)

	crc := CalculateCRC(buf[MarkerSize : HeaderSize+len(payload)])
	binary.BigEndian.PutUint16(buf[HeaderSize+len(payload):], crc)

	return buf, nil
}

// mustEncode is used for fixed-size frames that cannot exceed the payload limit.
func mustEncode(msgID uint8, seq uint16, ticks uint32, payload []byte) []byte {
	buf, err := EncodeFrame(msgID, seq, ticks, payload)
	if err != nil {
		panic(fmt.Sprintf("triton: encode error: %v", err))
	}
	return buf
}

// EncodeCommand builds a COMMAND frame carrying 8 channel values.
// Values above 10000 are clamped to the wire maximum.
func EncodeCommand(seq uint16, ticks uint32, values [NumChannels]uint16) []byte {
	payload := make([]byte, CommandPayloadSize)
	for i, v := range values {
		if v > WireValueMax {
			v = WireValueMax
		}
		binary.BigEndian.PutUint16(payload[i*2:], v)
	}
	return mustEncode(MsgCommand, seq, ticks, payload)
}

// EncodeHeartbeat builds an empty-payload HEARTBEAT frame.
func EncodeHeartbeat(seq uint16, ticks uint32) []byte {
	return mustEncode(MsgHeartbeat, seq, ticks, nil)
}

// EncodeHeartbeatAck builds a HEARTBEAT_ACK frame. The sequence number echoes
// the heartbeat being acknowledged; ticks are the responder's own clock.
func EncodeHeartbeatAck(seq uint16, ticks uint32) []byte {
	return mustEncode(MsgHeartbeatAck, seq, ticks, nil)
}
