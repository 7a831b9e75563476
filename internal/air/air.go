// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package air estimates hand height above the surface from a column of
// light-beam sensors.
package air

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/touch_controller/internal/storage"
)

const (
	Sensors            = 6
	SensitivityOffset  = 66
	DefaultSensitivity = 50
	DefaultSamples     = 75
)

// Reader samples every beam channel in one call.
type Reader interface {
	Channels() int
	Sense(out []uint16)
}

// Reading is one sample of the beam column.
type Reading struct {
	Raw      [Sensors]uint16 `json:"raw"`
	Mask     uint8           `json:"mask"`
	Position float64         `json:"position"`
}

// Sensor tracks the resting level of each beam. A beam counts as broken
// when it drops below sensitivity percent of its resting level.
type Sensor struct {
	r        Reader
	store    storage.Store
	samples  int
	minLevel uint16
	sens     uint8

	baseline   [Sensors]float64
	calibrated [Sensors]bool
	buf        []uint16
}

// New loads the stored sensitivity, writing the default back if unset.
// Beams whose resting level stays under minLevel are treated as absent.
func New(r Reader, s storage.Store, samples int, minLevel uint16) (*Sensor, error) {
	if r.Channels() < Sensors {
		return nil, fmt.Errorf("air sensor needs %d channels, reader has %d", Sensors, r.Channels())
	}
	if samples <= 0 {
		samples = DefaultSamples
	}
	a := &Sensor{r: r, store: s, samples: samples, minLevel: minLevel, buf: make([]uint16, r.Channels())}

	b := make([]byte, 1)
	if _, err := s.ReadAt(b, SensitivityOffset); err != nil {
		return nil, fmt.Errorf("failed to read air sensitivity: %w", err)
	}
	a.sens = b[0]
	if a.sens == 0 || a.sens > 100 {
		if err := a.SetSensitivity(DefaultSensitivity); err != nil {
			log.Printf("air: %v", err)
			a.sens = DefaultSensitivity
		}
	}
	return a, nil
}

func (a *Sensor) Sensitivity() uint8 { return a.sens }

func (a *Sensor) SetSensitivity(v uint8) error {
	if err := WriteSensitivity(a.store, v); err != nil {
		return err
	}
	a.sens = v
	return nil
}

// WriteSensitivity stores v in the air sensitivity byte of s.
func WriteSensitivity(s storage.Store, v uint8) error {
	if v == 0 || v > 100 {
		return fmt.Errorf("air sensitivity must be 1-100, got %d", v)
	}
	if _, err := s.WriteAt([]byte{v}, SensitivityOffset); err != nil {
		return fmt.Errorf("failed to write air sensitivity: %w", err)
	}
	return nil
}

// Calibrate captures the resting level of every beam. The column must be
// unobstructed while it runs.
func (a *Sensor) Calibrate() {
	var series [Sensors][]float64
	for i := range series {
		series[i] = make([]float64, a.samples)
	}
	for n := 0; n < a.samples; n++ {
		a.r.Sense(a.buf)
		for i := 0; i < Sensors; i++ {
			series[i][n] = float64(a.buf[i])
		}
	}
	for i := 0; i < Sensors; i++ {
		a.baseline[i] = stat.Mean(series[i], nil)
		a.calibrated[i] = a.baseline[i] >= float64(a.minLevel)
		if !a.calibrated[i] {
			log.Printf("air: sensor %d resting level %.1f below %d, ignoring it", i, a.baseline[i], a.minLevel)
		}
	}
	log.Printf("air: calibrated (%d of %d sensors usable)", a.Usable(), Sensors)
}

// Usable returns how many beams passed calibration.
func (a *Sensor) Usable() int {
	n := 0
	for _, ok := range a.calibrated {
		if ok {
			n++
		}
	}
	return n
}

// Sample reads the column once.
func (a *Sensor) Sample() Reading {
	a.r.Sense(a.buf)
	var rd Reading
	for i := 0; i < Sensors; i++ {
		rd.Raw[i] = a.buf[i]
		if !a.calibrated[i] {
			continue
		}
		limit := a.baseline[i] * float64(a.sens) / 100
		if float64(a.buf[i]) < limit {
			rd.Mask |= 1 << i
		}
	}
	rd.Position = HandPosition(rd.Mask)
	return rd
}

// HandPosition maps the highest broken beam to a height in (0,1]; 0 means
// no hand.
func HandPosition(mask uint8) float64 {
	for i := Sensors - 1; i >= 0; i-- {
		if mask&(1<<i) != 0 {
			return math.Round(float64(i+1)/Sensors*1000) / 1000
		}
	}
	return 0
}
