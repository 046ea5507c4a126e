// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

import (
	"fmt"
	"math"
	"time"
)

// GroupMode selects which channels a shaping step may update.
type GroupMode int

const (
	// GroupAll updates every channel on every step.
	GroupAll GroupMode = iota

	// GroupAlternateAB updates group A and group B on alternating steps,
	// halving each channel's effective update rate. Moving half the
	// thrusters at a time keeps the aggregate current draw smooth.
	GroupAlternateAB
)

// ChannelMask selects channels: bit 0 is channel 1, bit 7 is channel 8.
type ChannelMask uint8

const (
	MaskAll    ChannelMask = 0xFF
	MaskCh1to4 ChannelMask = 0x0F
	MaskCh5to8 ChannelMask = 0xF0
)

// Has reports whether the 1-based channel ch is in the mask.
func (m ChannelMask) Has(ch int) bool {
	if ch < 1 || ch > NumChannels {
		return false
	}
	return m&(1<<(ch-1)) != 0
}

// EmitFunc delivers one complete shaped channel vector, in duty percent, to
// the downstream collaborator (transport or actuator). The wire format has no
// partial updates: all 8 channels go out in one call.
type EmitFunc func(duty [NumChannels]float64) error

// ShaperConfig configures the command shaper. Zero-valued fields fall back to
// safe engineering defaults; ReverseProtection is taken as given (see
// DefaultShaperConfig, which enables it).
type ShaperConfig struct {
	ControlHz float64 // step() call rate, used by the blocking helpers
	MaxStep   float64 // max duty change per step, in percent points

	Min float64 // duty floor (full reverse)
	Mid float64 // neutral duty
	Max float64 // duty ceiling (full forward)

	GroupMode GroupMode
	GroupA    ChannelMask
	GroupB    ChannelMask

	// ReverseProtection forces any sign reversal to pass through the
	// neutral point over at least two steps instead of slamming from one
	// extreme toward the other.
	ReverseProtection bool
}

// DefaultShaperConfig returns the recommended configuration: 50Hz control,
// 0.2%/step slew, 5/7.5/10 duty range, A/B alternation over channels 1-4 and
// 5-8, reverse protection on.
func DefaultShaperConfig() ShaperConfig {
	return ShaperConfig{
		ControlHz:         50.0,
		MaxStep:           0.2,
		Min:               DutyMin,
		Mid:               DutyMid,
		Max:               DutyMax,
		GroupMode:         GroupAlternateAB,
		GroupA:            MaskCh1to4,
		GroupB:            MaskCh5to8,
		ReverseProtection: true,
	}
}

// Shaper owns the per-channel current/target duty values and advances the
// current values toward their targets under the slew, reversal, and grouping
// constraints. All methods must be called from a single scheduling context;
// the shaper performs no locking of its own.
type Shaper struct {
	cfg     ShaperConfig
	current [NumChannels]float64
	target  [NumChannels]float64

	stepCount uint64
	groupB    bool // next alternating step updates group B

	emit EmitFunc
}

// NewShaper validates the configuration, initializes every channel to the
// neutral duty, and emits one all-neutral vector so the downstream state is
// known before the first step.
func NewShaper(cfg ShaperConfig, emit EmitFunc) (*Shaper, error) {
	if emit == nil {
		return nil, fmt.Errorf("nil emit function")
	}

	if cfg.ControlHz <= 0 {
		cfg.ControlHz = 50.0
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = 0.2
	}
	if cfg.Min <= 0 {
		cfg.Min = DutyMin
	}
	if cfg.Mid <= 0 {
		cfg.Mid = DutyMid
	}
	if cfg.Max <= 0 {
		cfg.Max = DutyMax
	}
	if !(cfg.Min < cfg.Mid && cfg.Mid < cfg.Max) {
		cfg.Min, cfg.Mid, cfg.Max = DutyMin, DutyMid, DutyMax
	}
	if cfg.GroupA == 0 && cfg.GroupB == 0 {
		cfg.GroupA = MaskCh1to4
		cfg.GroupB = MaskCh5to8
	}
	if cfg.GroupMode != GroupAll && cfg.GroupMode != GroupAlternateAB {
		cfg.GroupMode = GroupAlternateAB
	}

	s := &Shaper{cfg: cfg, emit: emit}
	for i := 0; i < NumChannels; i++ {
		s.current[i] = cfg.Mid
		s.target[i] = cfg.Mid
	}

	if err := emit(s.current); err != nil {
		return nil, fmt.Errorf("initial neutral emit: %w", err)
	}
	return s, nil
}

// Config returns the effective configuration after defaulting
func (s *Shaper) Config() ShaperConfig {
	return s.cfg
}

// StepCount returns the number of completed steps
func (s *Shaper) StepCount() uint64 {
	return s.stepCount
}

// Current returns the last emitted duty for the 1-based channel ch
func (s *Shaper) Current(ch int) float64 {
	return s.current[ch-1]
}

// Target returns the commanded duty for the 1-based channel ch
func (s *Shaper) Target(ch int) float64 {
	return s.target[ch-1]
}

// Snapshot copies the full current and target vectors
func (s *Shaper) Snapshot() (current, target [NumChannels]float64) {
	return s.current, s.target
}

func (s *Shaper) clamp(pct float64) float64 {
	if pct < s.cfg.Min {
		return s.cfg.Min
	}
	if pct > s.cfg.Max {
		return s.cfg.Max
	}
	return pct
}

// SetTarget stores a new target duty for the 1-based channel ch. It does not
// affect output until the next Step. Negative values mean "neutral".
func (s *Shaper) SetTarget(ch int, pct float64) error {
	if ch < 1 || ch > NumChannels {
		return fmt.Errorf("channel %d out of range 1..%d", ch, NumChannels)
	}
	if pct < 0 {
		pct = s.cfg.Mid
	}
	s.target[ch-1] = s.clamp(pct)
	return nil
}

// SetTargets stores targets for every channel selected by mask.
func (s *Shaper) SetTargets(mask ChannelMask, pct [NumChannels]float64) {
	for i := 0; i < NumChannels; i++ {
		if !mask.Has(i + 1) {
			continue
		}
		p := pct[i]
		if p < 0 {
			p = s.cfg.Mid
		}
		s.target[i] = s.clamp(p)
	}
}

// SetAllTargetsNeutral points every channel at the neutral duty.
func (s *Shaper) SetAllTargetsNeutral() {
	for i := 0; i < NumChannels; i++ {
		s.target[i] = s.cfg.Mid
	}
}

// activeMask returns the channel set this step may update, without mutating
// the alternation state. The toggle advances only after a successful emit so
// a failed step retries identically.
func (s *Shaper) activeMask() ChannelMask {
	switch s.cfg.GroupMode {
	case GroupAll:
		return MaskAll
	default:
		if s.groupB {
			return s.cfg.GroupB
		}
		return s.cfg.GroupA
	}
}

// Step advances each active channel toward its target by at most MaxStep,
// forcing reversals through neutral when reverse protection is enabled, and
// emits the complete 8-channel vector downstream. If the emit fails, no
// internal state changes: retrying the step is idempotent.
func (s *Shaper) Step() error {
	const eps = 1e-6

	mask := s.activeMask()
	mid := s.cfg.Mid
	next := s.current

	for i := 0; i < NumChannels; i++ {
		if !mask.Has(i + 1) {
			continue // inactive this step, holds previous value
		}

		cur := s.current[i]
		tgt := s.target[i]

		// Reversal passes through neutral: if current and target sit on
		// strictly opposite sides of mid, this step aims at mid instead.
		eff := tgt
		if s.cfg.ReverseProtection {
			curAbove := cur > mid+eps
			curBelow := cur < mid-eps
			tgtAbove := tgt > mid+eps
			tgtBelow := tgt < mid-eps
			if (curAbove && tgtBelow) || (curBelow && tgtAbove) {
				eff = mid
			}
		}

		delta := eff - cur
		if delta > s.cfg.MaxStep {
			delta = s.cfg.MaxStep
		} else if delta < -s.cfg.MaxStep {
			delta = -s.cfg.MaxStep
		}

		next[i] = s.clamp(cur + delta)
	}

	if err := s.emit(next); err != nil {
		return fmt.Errorf("emit failed: %w", err)
	}

	s.current = next
	s.stepCount++
	if s.cfg.GroupMode == GroupAlternateAB {
		s.groupB = !s.groupB
	}
	return nil
}

func (s *Shaper) period() time.Duration {
	return time.Duration(float64(time.Second) / s.cfg.ControlHz)
}

// HoldFor sets a target for one channel and runs the step loop for the given
// duration, so the channel ramps to the value and holds it there.
func (s *Shaper) HoldFor(ch int, pct float64, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("non-positive hold duration %v", d)
	}
	if err := s.SetTarget(ch, pct); err != nil {
		return err
	}

	steps := int(d.Seconds()*s.cfg.ControlHz + 0.5)
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return err
		}
		time.Sleep(s.period())
	}
	return nil
}

// RampToNeutral points every channel at neutral and steps until all have
// arrived, taking at least d when d is positive. The step count is bounded by
// the worst-case deviation divided by the slew limit, doubled under A/B
// alternation since each channel moves only every other step.
func (s *Shaper) RampToNeutral(d time.Duration) error {
	s.SetAllTargetsNeutral()

	maxDev := 0.0
	for i := 0; i < NumChannels; i++ {
		if dev := math.Abs(s.current[i] - s.cfg.Mid); dev > maxDev {
			maxDev = dev
		}
	}

	steps := int(math.Ceil(maxDev/s.cfg.MaxStep)) + 1
	if s.cfg.GroupMode == GroupAlternateAB {
		steps *= 2
	}
	if d > 0 {
		if byTime := int(d.Seconds()*s.cfg.ControlHz + 0.5); byTime > steps {
			steps = byTime
		}
	}

	for i := 0; i < steps; i++ {
		if err := s.Step(); err != nil {
			return err
		}
		time.Sleep(s.period())
	}
	return nil
}
