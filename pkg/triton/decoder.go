// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Decode error categories. The reassembler maps these onto its statistics
// counters; callers can test them with errors.Is.
var (
	ErrShortFrame  = errors.New("frame truncated")
	ErrBadMarker   = errors.New("missing start marker")
	ErrBadVersion  = errors.New("unsupported protocol version")
	ErrBadLength   = errors.New("invalid payload length")
	ErrCRCMismatch = errors.New("CRC mismatch")
)

// DecodeFrame parses a single frame from buf, which must begin exactly at the
// start marker and contain at least MinFrameLen bytes. It never reads past the
// bounds implied by the declared payload length; trailing bytes are ignored.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) < MinFrameLen {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrShortFrame, len(buf), MinFrameLen)
	}
	if buf[0] != MarkerByte0 || buf[1] != MarkerByte1 {
		return nil, fmt.Errorf("%w: 0x%02X%02X", ErrBadMarker, buf[0], buf[1])
	}

	version := buf[2]
	if version != ProtoVersion1 {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadVersion, version)
	}

	length := int(binary.BigEndian.Uint16(buf[10:12]))
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrBadLength, length, MaxPayloadSize)
	}

	frameLen := HeaderSize + length + CRCSize
	if len(buf) < frameLen {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortFrame, frameLen, len(buf))
	}

	calculated := CalculateCRC(buf[MarkerSize : HeaderSize+length])
	received := binary.BigEndian.Uint16(buf[HeaderSize+length:])
	if calculated != received {
		return nil, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, received)
	}

	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:HeaderSize+length])

	return &Frame{
		version:   version,
		msgID:     buf[3],
		seq:       binary.BigEndian.Uint16(buf[4:6]),
		ticks:     binary.BigEndian.Uint32(buf[6:10]),
		payload:   payload,
		crc:       received,
		timestamp: time.Now(),
	}, nil
}

// FrameLen reports the total wire length a frame starting at buf[0] declares,
// or 0 if fewer than HeaderSize bytes are available.
func FrameLen(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	return HeaderSize + int(binary.BigEndian.Uint16(buf[10:12])) + CRCSize
}
