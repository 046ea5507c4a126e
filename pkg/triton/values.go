// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package triton

// Value mapping between the three command domains:
//
//	wire units   0 .. 5000 .. 10000   (uint16 on the link)
//	normalized  -1 ..   0  ..    +1   (actuator collaborator input)
//	duty %       5 ..  7.5 ..    10   (shaper domain, 50Hz servo pulse)

// WireToNorm maps a wire value to the normalized -1..+1 range, 5000 -> 0.
// Out-of-range inputs are clamped.
func WireToNorm(v uint16) float64 {
	if v > WireValueMax {
		v = WireValueMax
	}
	return (float64(v) - WireValueNeutral) / WireValueNeutral
}

// NormToWire maps a normalized -1..+1 value to wire units, clamping first.
func NormToWire(n float64) uint16 {
	if n > 1 {
		n = 1
	}
	if n < -1 {
		n = -1
	}
	return uint16(n*WireValueNeutral + WireValueNeutral + 0.5)
}

// DutyToWire maps a duty percentage (5..10, 7.5 neutral) to wire units.
func DutyToWire(pct float64) uint16 {
	return NormToWire((pct - DutyMid) / (DutyMax - DutyMid))
}

// WireToDuty maps wire units to the duty percentage domain.
func WireToDuty(v uint16) float64 {
	return DutyMid + WireToNorm(v)*(DutyMax-DutyMid)
}
