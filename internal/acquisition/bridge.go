// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Bridge reads frames streamed by a remote sensing MCU over a serial link.
type Bridge struct {
	mode   zone.Mode
	rc     io.ReadCloser
	reader *bufio.Reader
	last   zone.Frame
	// retry is the pause after a read error before Scan returns.
	retry  time.Duration
	errors int
}

// OpenBridge opens the serial port at baud, 8N1.
func OpenBridge(m zone.Mode, portName string, baud int) (*Bridge, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge port %s: %w", portName, err)
	}
	log.Printf("acquisition: bridge opened on %s at %d baud", portName, baud)
	return NewBridge(m, port), nil
}

func NewBridge(m zone.Mode, rc io.ReadCloser) *Bridge {
	return &Bridge{
		mode:   m,
		rc:     rc,
		reader: bufio.NewReader(rc),
		last:   zone.NewFrame(m),
		retry:  100 * time.Millisecond,
	}
}

// Scan blocks until the next valid frame. Lines that are not frames or
// carry the wrong zone count are skipped; on a read error the previous
// frame is returned.
func (b *Bridge) Scan() zone.Frame {
	for {
		line, err := b.reader.ReadString('\n')
		if err != nil {
			b.errors++
			if b.errors == 1 || b.errors%100 == 0 {
				log.Printf("acquisition: bridge read error (%d so far): %v", b.errors, err)
			}
			if b.retry > 0 {
				time.Sleep(b.retry)
			}
			return b.last
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		f, err := ParseFrame(line)
		if err != nil || f.N != b.mode.Count() {
			continue
		}
		b.last = f
		return f
	}
}

func (b *Bridge) Close() error {
	return b.rc.Close()
}
