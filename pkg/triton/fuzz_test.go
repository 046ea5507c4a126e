// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomCommandValues(rng *rand.Rand) [NumChannels]uint16 {
	var values [NumChannels]uint16
	for i := range values {
		values[i] = uint16(rng.Intn(WireValueMax + 1))
	}
	return values
}

// ============================================================
// Reassembler Fuzz Tests
// ============================================================

// TestFuzzReassembler_RandomBytes feeds random bytes to the reassembler and
// verifies it doesn't panic and never grows past its capacity
func TestFuzzReassembler_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		r := NewReassembler(nil)

		// Generate random byte sequence of random length (1-1024 bytes)
		length := rng.Intn(1024) + 1
		data := make([]byte, length)
		rng.Read(data)

		r.Ingest(data)
		r.Drain()

		if r.Buffered() > RxBufferCap {
			t.Fatalf("round %d: buffer grew to %d", i, r.Buffered())
		}
	}
}

// TestFuzzReassembler_ValidFramesWithNoise interleaves well-formed frames
// with random noise and verifies every embedded frame survives
func TestFuzzReassembler_ValidFramesWithNoise(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		r := NewReassembler(nil)

		// A short noise prefix that cannot contain the marker pair
		prefix := make([]byte, rng.Intn(20))
		for j := range prefix {
			prefix[j] = byte(rng.Intn(0x50)) // below 0xAA
		}

		numFrames := rng.Intn(4) + 1
		var wantSeqs []uint16
		data := prefix
		for f := 0; f < numFrames; f++ {
			seq := uint16(rng.Intn(0x10000))
			wantSeqs = append(wantSeqs, seq)
			data = append(data, EncodeCommand(seq, rng.Uint32(), randomCommandValues(rng))...)
		}
		r.Ingest(data)

		frames := r.Drain()
		if len(frames) != numFrames {
			t.Fatalf("round %d: got %d frames, expected %d", i, len(frames), numFrames)
		}
		for j, f := range frames {
			if f.Seq() != wantSeqs[j] {
				t.Fatalf("round %d frame %d: seq %d, expected %d", i, j, f.Seq(), wantSeqs[j])
			}
		}
	}
}

// TestFuzzReassembler_RandomChunking delivers one valid frame in randomly
// sized chunks and verifies it always reassembles
func TestFuzzReassembler_RandomChunking(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		r := NewReassembler(nil)
		frame := EncodeCommand(uint16(i), rng.Uint32(), randomCommandValues(rng))

		pos := 0
		var frames []*Frame
		for pos < len(frame) {
			n := rng.Intn(len(frame)-pos) + 1
			r.Ingest(frame[pos : pos+n])
			pos += n
			frames = append(frames, r.Drain()...)
		}

		if len(frames) != 1 {
			t.Fatalf("round %d: got %d frames from chunked delivery", i, len(frames))
		}
	}
}

// ============================================================
// Round-Trip Fuzz Tests
// ============================================================

// TestFuzzRoundTrip encodes random frames and verifies decode returns the
// identical fields
func TestFuzzRoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		seq := uint16(rng.Intn(0x10000))
		ticks := rng.Uint32()
		values := randomCommandValues(rng)

		frame, err := DecodeFrame(EncodeCommand(seq, ticks, values))
		if err != nil {
			t.Fatalf("round %d: decode error: %v", i, err)
		}
		if frame.Seq() != seq || frame.Ticks() != ticks {
			t.Fatalf("round %d: header mismatch seq=%d ticks=%d", i, frame.Seq(), frame.Ticks())
		}
		got, err := frame.Channels()
		if err != nil {
			t.Fatalf("round %d: channels error: %v", i, err)
		}
		if got != values {
			t.Fatalf("round %d: payload mismatch", i)
		}
	}
}

// ============================================================
// Shaper Fuzz Tests
// ============================================================

// TestFuzzShaper_InvariantsHold drives the shaper with random targets and
// verifies output stays in range and never violates the slew limit
func TestFuzzShaper_InvariantsHold(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	cfg := DefaultShaperConfig()
	var last [NumChannels]float64
	emit := func(duty [NumChannels]float64) error {
		last = duty
		return nil
	}
	s, err := NewShaper(cfg, emit)
	if err != nil {
		t.Fatalf("NewShaper: %v", err)
	}
	prev := last

	for i := 0; i < rounds; i++ {
		if rng.Intn(4) == 0 {
			ch := rng.Intn(NumChannels) + 1
			pct := cfg.Min + rng.Float64()*(cfg.Max-cfg.Min)
			if err := s.SetTarget(ch, pct); err != nil {
				t.Fatalf("round %d: SetTarget: %v", i, err)
			}
		}
		if err := s.Step(); err != nil {
			t.Fatalf("round %d: Step: %v", i, err)
		}

		for ch := 0; ch < NumChannels; ch++ {
			if last[ch] < cfg.Min-1e-9 || last[ch] > cfg.Max+1e-9 {
				t.Fatalf("round %d: channel %d out of range: %f", i, ch+1, last[ch])
			}
			if d := last[ch] - prev[ch]; d > cfg.MaxStep+1e-9 || d < -cfg.MaxStep-1e-9 {
				t.Fatalf("round %d: channel %d slew %f exceeds limit", i, ch+1, d)
			}
		}
		prev = last
	}
}
