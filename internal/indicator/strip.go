// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"
)

// DefaultPixels matches the slider strip: one pixel per group with a
// divider pixel between neighbours.
const DefaultPixels = 31

// Strip drives a WS2812 strip; group g lights pixel 2g.
type Strip struct {
	mu     sync.Mutex
	w      io.Writer
	pixels []byte
	dirty  bool
}

// NewStrip opens an nrzled device on port with n pixels.
func NewStrip(port spi.Port, n int) (*Strip, error) {
	opts := nrzled.DefaultOpts
	opts.NumPixels = n
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open led strip: %w", err)
	}
	return newStrip(dev, n), nil
}

func newStrip(w io.Writer, n int) *Strip {
	return &Strip{w: w, pixels: make([]byte, 3*n)}
}

func (s *Strip) SetIndicator(group int, c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := 3 * group * 2
	if group < 0 || i+2 >= len(s.pixels) {
		return
	}
	s.pixels[i], s.pixels[i+1], s.pixels[i+2] = c.R, c.G, c.B
	s.dirty = true
}

func (s *Strip) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if _, err := s.w.Write(s.pixels); err != nil {
		return fmt.Errorf("led strip write: %w", err)
	}
	s.dirty = false
	return nil
}
