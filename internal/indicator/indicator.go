// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package indicator renders calibration feedback for groups of two zones.
package indicator

import "errors"

// Color is a 24-bit RGB value.
type Color struct {
	R, G, B uint8
}

var (
	Off    = Color{}
	Red    = Color{R: 0xFF}
	Purple = Color{R: 0x80, B: 0x80}
	Blue   = Color{B: 0xFF}
	Silver = Color{R: 0xC0, G: 0xC0, B: 0xC0}
	Green  = Color{G: 0x80}
)

// Name returns the palette name of c, or "rgb" for anything else.
func (c Color) Name() string {
	switch c {
	case Off:
		return "off"
	case Red:
		return "red"
	case Purple:
		return "purple"
	case Blue:
		return "blue"
	case Silver:
		return "silver"
	case Green:
		return "green"
	}
	return "rgb"
}

// Indicator is the feedback surface driven during calibration.
// SetIndicator only stages the color; Refresh pushes staged colors out.
type Indicator interface {
	SetIndicator(group int, c Color)
	Refresh() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) SetIndicator(int, Color) {}
func (Nop) Refresh() error          { return nil }

// Multi fans every call out to several indicators.
type Multi []Indicator

func (m Multi) SetIndicator(group int, c Color) {
	for _, ind := range m {
		ind.SetIndicator(group, c)
	}
}

func (m Multi) Refresh() error {
	var errs []error
	for _, ind := range m {
		if err := ind.Refresh(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
