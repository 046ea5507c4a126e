// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import "time"

// HeartbeatTracker pairs outbound heartbeat sequence numbers with their send
// times and computes the round-trip time when the matching acknowledgement
// arrives. Only the most recent heartbeat is tracked: a stale or duplicated
// ack is counted but tolerated, never treated as an error.
type HeartbeatTracker struct {
	lastSeq     uint16
	lastSentAt  time.Time
	outstanding bool

	lastRTT   time.Duration
	haveRTT   bool
	acked     uint64
	unmatched uint64
}

// NewHeartbeatTracker creates an empty tracker.
func NewHeartbeatTracker() *HeartbeatTracker {
	return &HeartbeatTracker{}
}

// Track records that a heartbeat with the given sequence number was sent at
// now, replacing any previously tracked heartbeat.
func (t *HeartbeatTracker) Track(seq uint16, now time.Time) {
	t.lastSeq = seq
	t.lastSentAt = now
	t.outstanding = true
}

// OnAck processes a HEARTBEAT_ACK frame. If its echoed sequence matches the
// most recently sent heartbeat, the round-trip time is computed against now
// and stored as the latest sample; the returned bool reports the match.
func (t *HeartbeatTracker) OnAck(f *Frame, now time.Time) (time.Duration, bool) {
	if !t.outstanding || f.Seq() != t.lastSeq {
		t.unmatched++
		return 0, false
	}
	t.outstanding = false
	t.lastRTT = now.Sub(t.lastSentAt)
	t.haveRTT = true
	t.acked++
	return t.lastRTT, true
}

// LastRTT returns the most recent round-trip sample, if any.
func (t *HeartbeatTracker) LastRTT() (time.Duration, bool) {
	return t.lastRTT, t.haveRTT
}

// Acked returns the number of matched acknowledgements.
func (t *HeartbeatTracker) Acked() uint64 {
	return t.acked
}

// Unmatched returns the number of acknowledgements that did not correspond
// to the most recently sent heartbeat (reordering, duplication, restarts).
func (t *HeartbeatTracker) Unmatched() uint64 {
	return t.unmatched
}
