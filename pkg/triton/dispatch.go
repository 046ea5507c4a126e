// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import "fmt"

// Message is the closed set of decoded frame meanings. Using a tagged
// variant instead of a raw message-ID switch forces every dispatch site to
// handle the unsupported case explicitly.
type Message interface {
	isMessage()
}

// CommandMessage carries 8 channel targets in wire units (0..10000).
type CommandMessage struct {
	Frame  *Frame
	Values [NumChannels]uint16
}

// HeartbeatMessage is a liveness probe expecting an acknowledgement.
type HeartbeatMessage struct {
	Frame *Frame
}

// HeartbeatAckMessage echoes a heartbeat's sequence number.
type HeartbeatAckMessage struct {
	Frame *Frame
}

// UnsupportedMessage wraps a syntactically valid frame whose message ID is
// reserved or unknown. It is ignored semantically and never refreshes
// liveness.
type UnsupportedMessage struct {
	Frame *Frame
	ID    uint8
}

func (CommandMessage) isMessage()      {}
func (HeartbeatMessage) isMessage()    {}
func (HeartbeatAckMessage) isMessage() {}
func (UnsupportedMessage) isMessage()  {}

// Classify maps a validated frame onto the message variant. A COMMAND frame
// with a malformed payload length is a length error, not an unsupported
// message: the ID was recognized, the payload was not usable.
func Classify(f *Frame) (Message, error) {
	switch f.MsgID() {
	case MsgCommand:
		values, err := f.Channels()
		if err != nil {
			return nil, fmt.Errorf("command frame: %v", err)
		}
		return CommandMessage{Frame: f, Values: values}, nil
	case MsgHeartbeat:
		return HeartbeatMessage{Frame: f}, nil
	case MsgHeartbeatAck:
		return HeartbeatAckMessage{Frame: f}, nil
	default:
		return UnsupportedMessage{Frame: f, ID: f.MsgID()}, nil
	}
}
