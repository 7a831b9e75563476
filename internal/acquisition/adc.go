// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// ADCBank reads single-ended channels of an MCP3008 class 10-bit ADC.
type ADCBank struct {
	conn     spi.Conn
	channels int
	w, r     []byte
	warned   bool
}

// NewADCBank connects to port at 1 MHz, SPI mode 0.
func NewADCBank(port spi.Port, channels int) (*ADCBank, error) {
	if channels < 1 || channels > 8 {
		return nil, fmt.Errorf("adc channels must be 1-8, got %d", channels)
	}
	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to connect adc: %w", err)
	}
	return &ADCBank{conn: conn, channels: channels, w: make([]byte, 3), r: make([]byte, 3)}, nil
}

func (b *ADCBank) Channels() int { return b.channels }

func (b *ADCBank) Sense(out []uint16) {
	for ch := 0; ch < b.channels && ch < len(out); ch++ {
		out[ch] = b.read(ch)
	}
}

func (b *ADCBank) read(ch int) uint16 {
	b.w[0] = 0x01
	b.w[1] = byte(0x80 | ch<<4)
	b.w[2] = 0
	if err := b.conn.Tx(b.w, b.r); err != nil {
		if !b.warned {
			log.Printf("acquisition: adc channel %d: %v", ch, err)
			b.warned = true
		}
		return 0
	}
	return uint16(b.r[1]&0x03)<<8 | uint16(b.r[2])
}
