// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import "time"

// MinFailsafeTimeout is the safety floor for the liveness timeout. Shorter
// values would trip failsafe between consecutive command frames on a slow
// serial link.
const MinFailsafeTimeout = 50 * time.Millisecond

// DefaultFailsafeTimeout is used when no timeout is configured.
const DefaultFailsafeTimeout = 500 * time.Millisecond

// LinkSupervisor tracks time since the last validated inbound frame and
// drives the two-state failsafe machine. Losing the link is not an error:
// FAILSAFE is the designed safety response, and the supervisor returns to
// ACTIVE on the next valid frame.
type LinkSupervisor struct {
	state     LinkState
	lastValid time.Time
	timeout   time.Duration

	// onFailsafe forces the neutral output state. Invoked exactly once per
	// transition into FAILSAFE.
	onFailsafe func()
}

// NewLinkSupervisor creates a supervisor in the ACTIVE state, treating now as
// the moment of last valid reception. onFailsafe may be nil.
func NewLinkSupervisor(timeout time.Duration, now time.Time, onFailsafe func()) *LinkSupervisor {
	s := &LinkSupervisor{
		state:      LinkActive,
		lastValid:  now,
		onFailsafe: onFailsafe,
	}
	s.SetTimeout(timeout)
	return s
}

// SetTimeout configures the liveness timeout, clamped to the safety floor.
func (s *LinkSupervisor) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultFailsafeTimeout
	}
	if timeout < MinFailsafeTimeout {
		timeout = MinFailsafeTimeout
	}
	s.timeout = timeout
}

// Timeout returns the effective liveness timeout
func (s *LinkSupervisor) Timeout() time.Duration {
	return s.timeout
}

// State returns the current link state
func (s *LinkSupervisor) State() LinkState {
	return s.state
}

// LastValid returns the timestamp of the last liveness-refreshing frame
func (s *LinkSupervisor) LastValid() time.Time {
	return s.lastValid
}

// OnValidFrame records reception of a validated frame. Only COMMAND and
// HEARTBEAT/HEARTBEAT_ACK refresh liveness: extension frames pass CRC but
// must not keep a dead link looking alive. A refreshing frame while in
// FAILSAFE restores ACTIVE immediately.
func (s *LinkSupervisor) OnValidFrame(msgID uint8, now time.Time) {
	switch msgID {
	case MsgCommand, MsgHeartbeat, MsgHeartbeatAck:
		s.lastValid = now
		s.state = LinkActive
	}
}

// Poll checks elapsed time against the timeout and transitions to FAILSAFE
// when it is exceeded, firing the neutral-output effect on the transition.
// Returns the state after the check.
func (s *LinkSupervisor) Poll(now time.Time) LinkState {
	if s.state == LinkActive && now.Sub(s.lastValid) > s.timeout {
		s.state = LinkFailsafe
		if s.onFailsafe != nil {
			s.onFailsafe()
		}
	}
	return s.state
}

// ForceFailsafe drives the failsafe effect unconditionally, e.g. for an
// operator-commanded emergency stop. The state machine follows: a later
// valid frame still restores ACTIVE.
func (s *LinkSupervisor) ForceFailsafe() {
	s.state = LinkFailsafe
	if s.onFailsafe != nil {
		s.onFailsafe()
	}
}
