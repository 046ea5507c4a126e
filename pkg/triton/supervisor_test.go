// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"testing"
	"time"
)

func TestLinkSupervisor_TimeoutTransition(t *testing.T) {
	base := time.Now()
	fired := 0
	sup := NewLinkSupervisor(100*time.Millisecond, base, func() { fired++ })

	if state := sup.Poll(base.Add(50 * time.Millisecond)); state != LinkActive {
		t.Errorf("state after 50ms = %v", state)
	}
	if fired != 0 {
		t.Errorf("failsafe fired early: %d", fired)
	}

	if state := sup.Poll(base.Add(150 * time.Millisecond)); state != LinkFailsafe {
		t.Errorf("state after 150ms = %v", state)
	}
	if fired != 1 {
		t.Errorf("failsafe fired %d times, expected 1", fired)
	}

	// Re-polling while already in FAILSAFE must not re-fire the effect
	sup.Poll(base.Add(200 * time.Millisecond))
	sup.Poll(base.Add(300 * time.Millisecond))
	if fired != 1 {
		t.Errorf("failsafe re-fired: %d", fired)
	}
}

func TestLinkSupervisor_RecoveryOnValidFrame(t *testing.T) {
	base := time.Now()
	fired := 0
	sup := NewLinkSupervisor(100*time.Millisecond, base, func() { fired++ })

	sup.Poll(base.Add(200 * time.Millisecond))
	if sup.State() != LinkFailsafe {
		t.Fatal("expected FAILSAFE")
	}

	sup.OnValidFrame(MsgCommand, base.Add(250*time.Millisecond))
	if sup.State() != LinkActive {
		t.Error("valid frame should restore ACTIVE")
	}
	if state := sup.Poll(base.Add(300 * time.Millisecond)); state != LinkActive {
		t.Errorf("state after recovery = %v", state)
	}

	// A second outage fires the effect again
	sup.Poll(base.Add(400 * time.Millisecond))
	if fired != 2 {
		t.Errorf("failsafe fired %d times, expected 2", fired)
	}
}

func TestLinkSupervisor_LivenessKinds(t *testing.T) {
	tests := []struct {
		name      string
		msgID     uint8
		refreshes bool
	}{
		{"command", MsgCommand, true},
		{"heartbeat", MsgHeartbeat, true},
		{"heartbeat ack", MsgHeartbeatAck, true},
		{"extension telemetry", MsgExtTelemetry, false},
		{"extension config", MsgExtConfig, false},
		{"unknown", 0x7E, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := time.Now()
			sup := NewLinkSupervisor(100*time.Millisecond, base, nil)

			sup.OnValidFrame(tt.msgID, base.Add(90*time.Millisecond))
			state := sup.Poll(base.Add(150 * time.Millisecond))

			if tt.refreshes && state != LinkActive {
				t.Errorf("%s should refresh liveness", tt.name)
			}
			if !tt.refreshes && state != LinkFailsafe {
				t.Errorf("%s must not refresh liveness", tt.name)
			}
		})
	}
}

func TestLinkSupervisor_TimeoutFloor(t *testing.T) {
	sup := NewLinkSupervisor(10*time.Millisecond, time.Now(), nil)
	if sup.Timeout() != MinFailsafeTimeout {
		t.Errorf("timeout = %v, expected floor %v", sup.Timeout(), MinFailsafeTimeout)
	}

	sup.SetTimeout(0)
	if sup.Timeout() != DefaultFailsafeTimeout {
		t.Errorf("zero timeout should select default, got %v", sup.Timeout())
	}

	sup.SetTimeout(2 * time.Second)
	if sup.Timeout() != 2*time.Second {
		t.Errorf("timeout = %v", sup.Timeout())
	}
}

func TestLinkSupervisor_ForceFailsafe(t *testing.T) {
	fired := 0
	sup := NewLinkSupervisor(time.Second, time.Now(), func() { fired++ })

	sup.ForceFailsafe()
	if sup.State() != LinkFailsafe || fired != 1 {
		t.Errorf("state=%v fired=%d", sup.State(), fired)
	}

	sup.OnValidFrame(MsgHeartbeat, time.Now())
	if sup.State() != LinkActive {
		t.Error("valid frame should clear forced failsafe")
	}
}
