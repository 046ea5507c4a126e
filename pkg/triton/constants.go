// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package triton provides a reference Go implementation of the Triton link protocol.
//
// Triton is a binary point-to-point protocol carrying periodic 8-channel
// actuator commands and a liveness heartbeat between a host controller and an
// actuator node. The transport (serial UART, UDP, WebSocket bridge) is assumed
// unreliable: frames may arrive corrupted, fragmented, or interleaved with
// noise. This package provides frame encoding/decoding, CRC validation, stream
// resynchronization, failsafe supervision, and command trajectory shaping.
package triton

// Protocol framing
const (
	MarkerByte0 = 0xAA
	MarkerByte1 = 0x55

	ProtoVersion1 = 0x01
)

// Frame layout sizes. The fixed header is
// MARKER(2) + VER(1) + MSG(1) + SEQ(2) + TICKS(4) + LEN(2).
const (
	MarkerSize  = 2
	HeaderSize  = 12 // marker + version..length
	CRCSize     = 2
	MinFrameLen = HeaderSize + CRCSize // 14, a zero-payload frame

	// crcSpanFixed is the number of CRC-covered header bytes (VER..LEN).
	crcSpanFixed = HeaderSize - MarkerSize

	MaxPayloadSize = 16
	MaxFrameLen    = HeaderSize + MaxPayloadSize + CRCSize

	// RxBufferCap bounds the reassembly buffer. On overflow the oldest
	// bytes are dropped so the most recent traffic survives.
	RxBufferCap = 512
)

// Message IDs
const (
	MsgCommand      = 0x01
	MsgHeartbeat    = 0x10
	MsgHeartbeatAck = 0x11

	// Reserved extension IDs. Frames carrying these must pass framing and
	// CRC checks like any other, but their payloads are ignored and they
	// never refresh link liveness.
	MsgExtTelemetry = 0x20
	MsgExtConfig    = 0x40
)

// CRC-16-CCITT (FALSE variant) configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Command payload: 8 channels, each a big-endian uint16 in 0..10000.
// 5000 is the neutral point; the range maps linearly to -1..+1.
const (
	NumChannels        = 8
	CommandPayloadSize = NumChannels * 2

	WireValueMax     = 10000
	WireValueNeutral = 5000
)

// Duty-cycle domain used by the command shaper, matching the 50Hz servo
// convention: 5.0% -> 1000us (full reverse), 7.5% -> 1500us (neutral),
// 10.0% -> 2000us (full forward).
const (
	DutyMin = 5.0
	DutyMid = 7.5
	DutyMax = 10.0
)

// LinkState is the two-state failsafe machine of the link supervisor.
type LinkState int

const (
	LinkActive LinkState = iota
	LinkFailsafe
)

// String returns the state name.
func (s LinkState) String() string {
	switch s {
	case LinkActive:
		return "ACTIVE"
	case LinkFailsafe:
		return "FAILSAFE"
	default:
		return "UNKNOWN"
	}
}
