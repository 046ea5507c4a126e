// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"testing"
	"time"
)

func ackFrame(t *testing.T, seq uint16) *Frame {
	t.Helper()
	f, err := DecodeFrame(EncodeHeartbeatAck(seq, 0))
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return f
}

func TestHeartbeatTracker_RoundTrip(t *testing.T) {
	tr := NewHeartbeatTracker()
	if _, ok := tr.LastRTT(); ok {
		t.Error("fresh tracker should have no RTT sample")
	}

	base := time.Now()
	tr.Track(42, base)

	rtt, matched := tr.OnAck(ackFrame(t, 42), base.Add(35*time.Millisecond))
	if !matched {
		t.Fatal("matching ack not recognized")
	}
	if rtt != 35*time.Millisecond {
		t.Errorf("rtt = %v", rtt)
	}
	if got, ok := tr.LastRTT(); !ok || got != 35*time.Millisecond {
		t.Errorf("LastRTT = %v, %v", got, ok)
	}
	if tr.Acked() != 1 || tr.Unmatched() != 0 {
		t.Errorf("acked=%d unmatched=%d", tr.Acked(), tr.Unmatched())
	}
}

func TestHeartbeatTracker_WrongSeq(t *testing.T) {
	tr := NewHeartbeatTracker()
	base := time.Now()
	tr.Track(10, base)

	if _, matched := tr.OnAck(ackFrame(t, 9), base.Add(time.Millisecond)); matched {
		t.Error("stale seq must not match")
	}
	if tr.Unmatched() != 1 {
		t.Errorf("unmatched = %d", tr.Unmatched())
	}

	// The real ack still matches afterwards
	if _, matched := tr.OnAck(ackFrame(t, 10), base.Add(2*time.Millisecond)); !matched {
		t.Error("correct ack rejected after a stale one")
	}
}

func TestHeartbeatTracker_DuplicateAck(t *testing.T) {
	tr := NewHeartbeatTracker()
	base := time.Now()
	tr.Track(5, base)

	if _, matched := tr.OnAck(ackFrame(t, 5), base.Add(time.Millisecond)); !matched {
		t.Fatal("first ack rejected")
	}
	// A duplicate of an already-consumed ack is unmatched, not an error
	if _, matched := tr.OnAck(ackFrame(t, 5), base.Add(2*time.Millisecond)); matched {
		t.Error("duplicate ack matched twice")
	}
	if tr.Acked() != 1 || tr.Unmatched() != 1 {
		t.Errorf("acked=%d unmatched=%d", tr.Acked(), tr.Unmatched())
	}
}

func TestHeartbeatTracker_NewerHeartbeatSupersedes(t *testing.T) {
	tr := NewHeartbeatTracker()
	base := time.Now()

	tr.Track(1, base)
	tr.Track(2, base.Add(10*time.Millisecond))

	// The late ack for seq 1 no longer matches
	if _, matched := tr.OnAck(ackFrame(t, 1), base.Add(15*time.Millisecond)); matched {
		t.Error("superseded heartbeat must not match")
	}
	rtt, matched := tr.OnAck(ackFrame(t, 2), base.Add(20*time.Millisecond))
	if !matched || rtt != 10*time.Millisecond {
		t.Errorf("matched=%v rtt=%v", matched, rtt)
	}
}
