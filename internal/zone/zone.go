// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package zone

import "fmt"

// MaxZones is the capacity of every per-zone array in the controller.
const MaxZones = 32

// Mode selects how many touch zones the surface exposes.
type Mode int

const (
	Sixteen   Mode = 16
	ThirtyTwo Mode = 32
)

// ParseMode converts a configured zone count into a Mode.
func ParseMode(n int) (Mode, error) {
	switch Mode(n) {
	case Sixteen, ThirtyTwo:
		return Mode(n), nil
	}
	return 0, fmt.Errorf("zone mode must be 16 or 32, got %d", n)
}

// Count returns the number of zones scanned in this mode.
func (m Mode) Count() int { return int(m) }

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool { return m == Sixteen || m == ThirtyTwo }

// DoubleThreshold reports whether the mode derives a second, "firm touch"
// threshold per zone.
func (m Mode) DoubleThreshold() bool { return m == Sixteen }

// Groups is the number of indicator groups (two zones per group).
func (m Mode) Groups() int { return int(m) / 2 }

// Reserved returns the four zones that form the hold-to-recalibrate gesture.
func (m Mode) Reserved() [4]int {
	if m == ThirtyTwo {
		return [4]int{28, 29, 30, 31}
	}
	return [4]int{12, 13, 14, 15}
}

// DefaultSensitivity is used whenever the persisted sensitivity byte is 0.
func (m Mode) DefaultSensitivity() uint8 {
	if m == ThirtyTwo {
		return 97
	}
	return 50
}

// Frame is one full scan: a raw intensity per zone.
type Frame struct {
	N   int              `json:"n"`
	Raw [MaxZones]uint16 `json:"raw"`
}

// NewFrame returns an empty frame sized for mode m.
func NewFrame(m Mode) Frame { return Frame{N: m.Count()} }

// Values returns the populated part of the frame.
func (f *Frame) Values() []uint16 { return f.Raw[:f.N] }

// State is the discrete status of a single zone.
type State uint8

const (
	Unpressed State = iota
	SinglePress
	DoublePress
)

func (s State) String() string {
	switch s {
	case Unpressed:
		return "unpressed"
	case SinglePress:
		return "single"
	case DoublePress:
		return "double"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText encodes the state by name for JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unpressed":
		*s = Unpressed
	case "single":
		*s = SinglePress
	case "double":
		*s = DoublePress
	default:
		return fmt.Errorf("unknown zone state %q", b)
	}
	return nil
}

// States holds the evaluated state of every zone in a scan.
type States struct {
	N int
	S [MaxZones]State
}

// NewStates returns all-unpressed states sized for mode m.
func NewStates(m Mode) States { return States{N: m.Count()} }

// Values returns the populated part of the state array.
func (s *States) Values() []State { return s.S[:s.N] }

// Transition is emitted whenever a zone changes state between scans.
type Transition struct {
	Zone  int   `json:"zone"`
	State State `json:"state"`
}
