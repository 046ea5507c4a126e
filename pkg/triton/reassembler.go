// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import "encoding/binary"

// Reassembler extracts Triton frames from a noisy byte stream. It owns a
// bounded receive buffer: Ingest appends raw chunks (dropping the oldest
// bytes on overflow so the newest traffic survives) and Drain scans the
// buffer for as many complete, CRC-valid frames as it holds.
//
// Recovery is byte-granular: a bad version, absurd length, or CRC mismatch
// discards exactly one byte before rescanning for the start marker. That
// recovers fastest from a single corrupted byte inside an otherwise
// plausible frame, at worst costing O(buffer) scan steps between two valid
// frames. The reassembler never blocks and never gives up on bad data.
type Reassembler struct {
	buf   []byte
	stats *Statistics
}

// NewReassembler creates a reassembler recording into stats.
// A nil stats creates a private tracker.
func NewReassembler(stats *Statistics) *Reassembler {
	if stats == nil {
		stats = NewStatistics()
	}
	return &Reassembler{
		buf:   make([]byte, 0, RxBufferCap),
		stats: stats,
	}
}

// Stats returns the statistics tracker shared with this reassembler
func (r *Reassembler) Stats() *Statistics {
	return r.stats
}

// Buffered returns the number of bytes waiting in the receive buffer
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Ingest appends raw bytes to the receive buffer. If the chunk would overflow
// the buffer, the oldest bytes are dropped first (sliding window): stale
// command data is worthless, the newest bytes are what matter.
func (r *Reassembler) Ingest(data []byte) {
	if len(data) == 0 {
		return
	}

	if len(data) > RxBufferCap {
		r.stats.RxDropped += uint64(len(r.buf) + len(data) - RxBufferCap)
		r.buf = r.buf[:0]
		data = data[len(data)-RxBufferCap:]
	} else if len(r.buf)+len(data) > RxBufferCap {
		over := len(r.buf) + len(data) - RxBufferCap
		r.stats.RxDropped += uint64(over)
		n := copy(r.buf, r.buf[over:])
		r.buf = r.buf[:n]
	}

	r.buf = append(r.buf, data...)
}

// Drain parses as many complete frames as the buffer currently holds and
// returns them in arrival order. Partial frames stay buffered for the next
// call; garbage prefixes and corrupt frames are skipped per the single-byte
// resync policy.
func (r *Reassembler) Drain() []*Frame {
	var frames []*Frame
	for {
		frame, consumed := r.scanOne()
		if consumed > 0 {
			n := copy(r.buf, r.buf[consumed:])
			r.buf = r.buf[:n]
		}
		if frame != nil {
			frames = append(frames, frame)
		}
		if frame == nil && consumed == 0 {
			return frames // need more data
		}
	}
}

// scanOne attempts to parse one frame from the buffer start.
// It returns the decoded frame (if any) and the byte count to discard.
// (nil, 0) means no progress is possible until more data arrives.
func (r *Reassembler) scanOne() (*Frame, int) {
	if len(r.buf) < MarkerSize {
		return nil, 0
	}

	// Hunt for the start marker
	pos := 0
	for pos+1 < len(r.buf) {
		if r.buf[pos] == MarkerByte0 && r.buf[pos+1] == MarkerByte1 {
			break
		}
		pos++
	}
	if pos > 0 {
		// Garbage prefix; keep the trailing byte in case it opens a marker
		r.stats.RxResyncBytes += uint64(pos)
		return nil, pos
	}

	if len(r.buf) < MinFrameLen {
		return nil, 0 // header incomplete, wait
	}

	if r.buf[2] != ProtoVersion1 {
		// Unsupported version: discard a single byte, not the whole
		// header, so real-but-unknown traffic cannot stall the stream.
		r.stats.RxUnsupported++
		return nil, 1
	}

	length := int(binary.BigEndian.Uint16(r.buf[10:12]))
	if length > MaxPayloadSize {
		// Declared length no valid frame can carry: corrupt header
		r.stats.RxLengthErrors++
		return nil, 1
	}

	frameLen := HeaderSize + length + CRCSize
	if len(r.buf) < frameLen {
		return nil, 0 // partial frame, wait
	}

	calculated := CalculateCRC(r.buf[MarkerSize : HeaderSize+length])
	received := binary.BigEndian.Uint16(r.buf[HeaderSize+length:])
	if calculated != received {
		r.stats.RxCRCErrors++
		return nil, 1
	}

	frame, err := DecodeFrame(r.buf[:frameLen])
	if err != nil {
		// Unreachable given the checks above; count and resync anyway
		r.stats.RxCRCErrors++
		return nil, 1
	}

	switch frame.msgID {
	case MsgCommand, MsgHeartbeat, MsgHeartbeatAck:
		r.stats.RxOK++
	default:
		// Syntactically valid extension frame; delivered but counted
		// separately so noise cannot masquerade as good traffic
		r.stats.RxUnsupported++
	}

	return frame, frameLen
}
