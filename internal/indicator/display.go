// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package indicator

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

type drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display shows one letter per group on a 128x64 SSD1306 panel.
type Display struct {
	mu     sync.Mutex
	dev    drawer
	groups []Color
	dirty  bool
}

// NewDisplay initialises the panel on bus with room for groups entries.
func NewDisplay(bus i2c.Bus, groups int) (*Display, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	return newDisplay(dev, groups), nil
}

func newDisplay(dev drawer, groups int) *Display {
	return &Display{dev: dev, groups: make([]Color, groups), dirty: true}
}

func (d *Display) SetIndicator(group int, c Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if group < 0 || group >= len(d.groups) {
		return
	}
	d.groups[group] = c
	d.dirty = true
}

func (d *Display) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}
	img := render(d.groups)
	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("display draw: %w", err)
	}
	d.dirty = false
	return nil
}

// render lays groups out eight per row under a title line.
func render(groups []Color) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawString("Calibration")

	for i, c := range groups {
		row, col := i/8, i%8
		drawer.Dot = fixed.P(col*16, 30+row*16)
		drawer.DrawString(string(symbol(c)))
	}
	return img
}

func symbol(c Color) byte {
	switch c {
	case Red:
		return 'T'
	case Purple:
		return '!'
	case Blue:
		return '~'
	case Silver:
		return '*'
	case Green:
		return 'o'
	}
	return '.'
}
