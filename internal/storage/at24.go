// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package storage

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// AT24 pages and timing for the 32 Kbit parts (AT24C32 and compatibles).
const (
	AT24DefaultAddr = 0x50
	at24PageSize    = 32
	at24WriteCycle  = 5 * time.Millisecond
)

// AT24 is a serial I2C EEPROM with 16-bit word addressing.
type AT24 struct {
	mu   sync.Mutex
	dev  *i2c.Dev
	size int
	// writeDelay waits out the internal write cycle after each page.
	writeDelay time.Duration
}

// NewAT24 binds an EEPROM at addr on bus and exposes the first size bytes.
func NewAT24(bus i2c.Bus, addr uint16, size int) *AT24 {
	return &AT24{
		dev:        &i2c.Dev{Bus: bus, Addr: addr},
		size:       size,
		writeDelay: at24WriteCycle,
	}
}

func (e *AT24) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkRange(e.size, len(p), off); err != nil {
		return 0, err
	}
	w := []byte{byte(off >> 8), byte(off & 0xFF)}
	if err := e.dev.Tx(w, p); err != nil {
		return 0, fmt.Errorf("at24 read @%d: %w", off, err)
	}
	return len(p), nil
}

// WriteAt splits p on page boundaries; a page write that crosses one
// wraps inside the page on the device.
func (e *AT24) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkRange(e.size, len(p), off); err != nil {
		return 0, err
	}
	written := 0
	for written < len(p) {
		addr := off + int64(written)
		n := at24PageSize - int(addr%at24PageSize)
		if rem := len(p) - written; n > rem {
			n = rem
		}
		w := make([]byte, 0, 2+n)
		w = append(w, byte(addr>>8), byte(addr&0xFF))
		w = append(w, p[written:written+n]...)
		if err := e.dev.Tx(w, nil); err != nil {
			return written, fmt.Errorf("at24 write @%d: %w", addr, err)
		}
		written += n
		if e.writeDelay > 0 {
			time.Sleep(e.writeDelay)
		}
	}
	return written, nil
}
