// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package touch

import "github.com/relabs-tech/touch_controller/internal/zone"

// Evaluate classifies every zone of f against r. A reading equal to a
// threshold counts as reaching it. An uncalibrated record reports nothing
// pressed.
func Evaluate(r *Record, f zone.Frame) zone.States {
	st := zone.NewStates(r.Mode)
	if !r.Calibrated {
		return st
	}
	n := min(st.N, f.N)
	for i := 0; i < n; i++ {
		v := f.Raw[i]
		switch {
		case r.Mode.DoubleThreshold() && v >= r.Double[i]:
			st.S[i] = zone.DoublePress
		case v >= r.Single[i]:
			st.S[i] = zone.SinglePress
		}
	}
	return st
}

// GestureHeld reports whether every reserved zone is at least single
// pressed.
func GestureHeld(m zone.Mode, st zone.States) bool {
	for _, z := range m.Reserved() {
		if z >= st.N || st.S[z] == zone.Unpressed {
			return false
		}
	}
	return true
}

// Tracker turns consecutive evaluations into state transitions.
type Tracker struct {
	prev zone.States
}

// Update returns the zones whose state differs from the previous call.
func (t *Tracker) Update(st zone.States) []zone.Transition {
	var out []zone.Transition
	for i := 0; i < st.N; i++ {
		if st.S[i] != t.prev.S[i] {
			out = append(out, zone.Transition{Zone: i, State: st.S[i]})
		}
	}
	t.prev = st
	return out
}

// Reset releases every zone and returns the resulting transitions.
func (t *Tracker) Reset() []zone.Transition {
	return t.Update(zone.States{N: t.prev.N})
}
