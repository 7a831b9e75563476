// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package acquisition produces full zone scans from local sensing hardware,
// a serial bridge, or recorded frames.
package acquisition

import (
	"fmt"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Addresses is the number of positions of the 3-bit sensor multiplexer.
const Addresses = 8

// Selector routes one multiplexer address to the channel bank.
type Selector interface {
	Select(addr uint8)
}

// Bank reads every channel at the current multiplexer address.
type Bank interface {
	Channels() int
	Sense(out []uint16)
}

// sensorMap routes the four 32-zone channels to zones; the boards wire
// neighbouring pads to alternate multiplexer inputs.
var sensorMap = [zone.MaxZones]int{
	6, 7, 4, 5, 2, 3, 0, 1,
	30, 31, 28, 29, 26, 27, 24, 25,
	22, 23, 20, 21, 18, 19, 16, 17,
	14, 15, 12, 13, 10, 11, 8, 9,
}

// placement maps (address, channel) to a zone index.
type placement func(addr, ch int) int

func placeSixteen(addr, ch int) int { return addr + Addresses*ch }

func placeThirtyTwo(addr, ch int) int { return sensorMap[addr+Addresses*ch] }

// Sweep walks all multiplexer addresses and reads the bank at each one.
type Sweep struct {
	mode  zone.Mode
	sel   Selector
	bank  Bank
	place placement
	buf   []uint16
	last  zone.Frame
}

// NewSweep picks the channel layout for mode m. The bank must provide at
// least m/8 channels.
func NewSweep(m zone.Mode, sel Selector, bank Bank) (*Sweep, error) {
	s := &Sweep{mode: m, sel: sel, bank: bank}
	switch m {
	case zone.Sixteen:
		s.place = placeSixteen
	case zone.ThirtyTwo:
		s.place = placeThirtyTwo
	default:
		return nil, fmt.Errorf("unsupported zone mode %d", m)
	}
	per := m.Count() / Addresses
	if bank.Channels() < per {
		return nil, fmt.Errorf("mode %d needs %d channels, bank has %d", m, per, bank.Channels())
	}
	s.buf = make([]uint16, bank.Channels())
	return s, nil
}

func (s *Sweep) Scan() zone.Frame {
	f := zone.NewFrame(s.mode)
	per := s.mode.Count() / Addresses
	for a := 0; a < Addresses; a++ {
		s.sel.Select(uint8(a))
		s.bank.Sense(s.buf)
		for ch := 0; ch < per; ch++ {
			f.Raw[s.place(a, ch)] = s.buf[ch]
		}
	}
	s.last = f
	return f
}

// Last returns the most recent frame.
func (s *Sweep) Last() zone.Frame { return s.last }
