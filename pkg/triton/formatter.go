// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	name := FormatMessageID(f.msgID)

	result := fmt.Sprintf("[%s] %s (0x%02X) seq=%d ticks=%dms len=%d\n",
		timestamp, name, f.msgID, f.seq, f.ticks, len(f.payload))

	if len(f.payload) > 0 {
		result += formatPayload(f)
	}

	return result
}

// FormatMessageID returns the human-readable name for a message ID
func FormatMessageID(msgID uint8) string {
	switch msgID {
	case MsgCommand:
		return "COMMAND"
	case MsgHeartbeat:
		return "HEARTBEAT"
	case MsgHeartbeatAck:
		return "HEARTBEAT_ACK"
	case MsgExtTelemetry:
		return "EXT_TELEMETRY"
	case MsgExtConfig:
		return "EXT_CONFIG"
	default:
		return "UNKNOWN"
	}
}

func formatPayload(f *Frame) string {
	if f.msgID == MsgCommand {
		if values, err := f.Channels(); err == nil {
			var sb strings.Builder
			sb.WriteString("  Channels:")
			for i, v := range values {
				sb.WriteString(fmt.Sprintf(" CH%d=%d(%.2f)", i+1, v, WireToNorm(v)))
			}
			sb.WriteString("\n")
			return sb.String()
		}
	}

	// Default: hex dump
	var sb strings.Builder
	sb.WriteString("  Payload: ")
	for i, b := range f.payload {
		if i > 0 && i%16 == 0 {
			sb.WriteString("\n           ")
		}
		sb.WriteString(fmt.Sprintf("%02X ", b))
	}
	sb.WriteString("\n")
	return sb.String()
}
