// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ApplyFunc delivers a full normalized channel vector (-1..+1, 0 neutral) to
// the actuator collaborator.
type ApplyFunc func(norm [NumChannels]float64) error

// EngineConfig configures a node-side link engine.
type EngineConfig struct {
	// FailsafeTimeout is the liveness timeout; zero selects the default
	// and values below the 50ms floor are clamped up.
	FailsafeTimeout time.Duration

	// Apply receives decoded command vectors and the neutral vector on
	// failsafe. A nil Apply discards output (monitor-only engines).
	Apply ApplyFunc

	// AckWriter receives encoded HEARTBEAT_ACK frames. Nil disables
	// acknowledgements.
	AckWriter io.Writer
}

// Engine is the node-side protocol instance: receive buffer, statistics and
// link state under one explicitly constructed value, so independent engines
// can run (and be tested) in parallel.
//
// The concurrency model mirrors the interrupt-driven node: one producer
// calls FeedBytes with raw chunks and raises the ready flag once the write
// is complete; one consumer, on its scheduling period, calls Process to
// parse and dispatch, clearing the flag only after dispatch finishes. All
// CRC and parsing work happens in the consumer; FeedBytes never parses and
// never blocks beyond a short append.
type Engine struct {
	mu      sync.Mutex
	staging []byte
	ready   atomic.Bool

	rx    *Reassembler
	sup   *LinkSupervisor
	stats *Statistics

	apply ApplyFunc
	ackW  io.Writer
	epoch time.Time
}

// NewEngine creates an engine in the ACTIVE link state, treating construction
// time as the last valid reception.
func NewEngine(cfg EngineConfig) *Engine {
	stats := NewStatistics()
	e := &Engine{
		rx:    NewReassembler(stats),
		stats: stats,
		apply: cfg.Apply,
		ackW:  cfg.AckWriter,
		epoch: time.Now(),
	}
	e.sup = NewLinkSupervisor(cfg.FailsafeTimeout, time.Now(), e.applyNeutral)
	return e
}

// applyNeutral is the failsafe side effect: all channels to the neutral
// point. Errors are swallowed; failsafe is a best-effort safety action, not
// an operation with a caller to report to.
func (e *Engine) applyNeutral() {
	if e.apply == nil {
		return
	}
	var neutral [NumChannels]float64
	_ = e.apply(neutral)
}

// Stats returns the engine's statistics tracker
func (e *Engine) Stats() *Statistics {
	return e.stats
}

// LinkState returns the current failsafe machine state
func (e *Engine) LinkState() LinkState {
	return e.sup.State()
}

// SetFailsafeTimeout reconfigures the liveness timeout (50ms floor).
func (e *Engine) SetFailsafeTimeout(d time.Duration) {
	e.sup.SetTimeout(d)
}

// Ticks returns milliseconds since the engine started
func (e *Engine) Ticks() uint32 {
	return uint32(time.Since(e.epoch) / time.Millisecond)
}

// FeedBytes appends a raw transport chunk for later processing and raises
// the ready flag. Safe to call from a receive goroutine while another
// goroutine runs Process.
func (e *Engine) FeedBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	e.mu.Lock()
	e.staging = append(e.staging, data...)
	e.mu.Unlock()
	e.ready.Store(true)
}

// Process drains any pending bytes through the reassembler and dispatches
// the decoded frames. It returns the first downstream failure (actuator
// apply or ack write) but keeps dispatching the remaining frames; protocol
// errors are counted, never returned. Call this from the scheduling loop.
func (e *Engine) Process(now time.Time) error {
	if !e.ready.Load() {
		return nil
	}

	e.mu.Lock()
	chunk := e.staging
	e.staging = nil
	e.mu.Unlock()

	e.rx.Ingest(chunk)

	var firstErr error
	for _, frame := range e.rx.Drain() {
		if err := e.dispatch(frame, now); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Clear the flag only once dispatch is done, unless the producer
	// delivered more bytes in the meantime.
	e.mu.Lock()
	if len(e.staging) == 0 {
		e.ready.Store(false)
	}
	e.mu.Unlock()

	return firstErr
}

func (e *Engine) dispatch(frame *Frame, now time.Time) error {
	msg, err := Classify(frame)
	if err != nil {
		// Recognized ID, unusable payload (e.g. command with LEN != 16)
		e.stats.RxLengthErrors++
		return nil
	}

	switch m := msg.(type) {
	case CommandMessage:
		e.sup.OnValidFrame(MsgCommand, now)
		if e.apply == nil {
			return nil
		}
		var norm [NumChannels]float64
		for i, v := range m.Values {
			norm[i] = WireToNorm(v)
		}
		return e.apply(norm)

	case HeartbeatMessage:
		e.sup.OnValidFrame(MsgHeartbeat, now)
		if e.ackW == nil {
			return nil
		}
		ack := EncodeHeartbeatAck(m.Frame.Seq(), e.Ticks())
		if _, err := e.ackW.Write(ack); err != nil {
			return err
		}
		e.stats.TxAcks++
		return nil

	case HeartbeatAckMessage:
		// Not expected on the node side, but a CRC-valid ack still
		// proves the link is alive.
		e.sup.OnValidFrame(MsgHeartbeatAck, now)
		return nil

	case UnsupportedMessage:
		// Counted by the reassembler; never refreshes liveness.
		return nil

	default:
		_ = m
		return nil
	}
}

// PollLink runs the failsafe timeout check. Call this on an independent,
// typically slower period than Process.
func (e *Engine) PollLink(now time.Time) LinkState {
	return e.sup.Poll(now)
}

// ForceFailsafe drives the neutral output immediately, e.g. on shutdown.
func (e *Engine) ForceFailsafe() {
	e.sup.ForceFailsafe()
}

// ResetStats clears all statistics counters.
func (e *Engine) ResetStats() {
	e.stats.Reset()
}
