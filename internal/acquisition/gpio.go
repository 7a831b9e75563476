// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIOSelector drives the three multiplexer address lines.
type GPIOSelector struct {
	pins   [3]gpio.PinOut
	warned bool
}

// OpenGPIOSelector looks up the address pins by name, low bit first.
func OpenGPIOSelector(names [3]string) (*GPIOSelector, error) {
	var pins [3]gpio.PinOut
	for i, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("mux pin %q not found", name)
		}
		pins[i] = p
	}
	return NewGPIOSelector(pins), nil
}

func NewGPIOSelector(pins [3]gpio.PinOut) *GPIOSelector {
	return &GPIOSelector{pins: pins}
}

func (s *GPIOSelector) Select(addr uint8) {
	for bit, p := range s.pins {
		if err := p.Out(gpio.Level(addr>>bit&1 == 1)); err != nil && !s.warned {
			log.Printf("acquisition: mux pin %s: %v", p, err)
			s.warned = true
		}
	}
}

// DefaultChargeTimeout bounds the poll loop of a pad that never charges.
const DefaultChargeTimeout = 2000

// ChargeBank measures RC charge time on each receive pin: the send pin is
// raised and the loop counts until the receive pin reads high. Each read
// sums several charge cycles.
type ChargeBank struct {
	send    gpio.PinOut
	receive []gpio.PinIO
	samples int
	timeout int
}

// OpenChargeBank resolves the send and receive pins by name.
func OpenChargeBank(send string, receive []string, samples, timeout int) (*ChargeBank, error) {
	sp := gpioreg.ByName(send)
	if sp == nil {
		return nil, fmt.Errorf("send pin %q not found", send)
	}
	var rx []gpio.PinIO
	for _, name := range receive {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("receive pin %q not found", name)
		}
		rx = append(rx, p)
	}
	return NewChargeBank(sp, rx, samples, timeout), nil
}

// NewChargeBank polls each pad at most timeout times per charge cycle;
// timeout <= 0 selects DefaultChargeTimeout.
func NewChargeBank(send gpio.PinOut, receive []gpio.PinIO, samples, timeout int) *ChargeBank {
	if samples <= 0 {
		samples = 3
	}
	if timeout <= 0 {
		timeout = DefaultChargeTimeout
	}
	return &ChargeBank{send: send, receive: receive, samples: samples, timeout: timeout}
}

func (b *ChargeBank) Channels() int { return len(b.receive) }

// Sense writes 0 for a channel that times out or fails.
func (b *ChargeBank) Sense(out []uint16) {
	for i, rx := range b.receive {
		if i >= len(out) {
			return
		}
		total := 0
		for s := 0; s < b.samples; s++ {
			n, ok := b.charge(rx)
			if !ok {
				total = 0
				break
			}
			total += n
		}
		out[i] = uint16(min(total, 0xFFFF))
	}
}

func (b *ChargeBank) charge(rx gpio.PinIO) (int, bool) {
	if err := b.send.Out(gpio.Low); err != nil {
		return 0, false
	}
	if err := rx.Out(gpio.Low); err != nil {
		return 0, false
	}
	if err := rx.In(gpio.Float, gpio.NoEdge); err != nil {
		return 0, false
	}
	if err := b.send.Out(gpio.High); err != nil {
		return 0, false
	}
	n := 0
	for rx.Read() == gpio.Low {
		n++
		if n >= b.timeout {
			return 0, false
		}
	}
	return n, true
}
