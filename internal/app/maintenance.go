// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/storage"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

// withStore opens the configured record store for one offline operation.
func withStore(fn func(s storage.Store, p touch.Params) error) error {
	cfg := config.Get()
	var hw closers
	defer hw.Close()

	p, err := EngineParams(cfg)
	if err != nil {
		return err
	}
	s, err := OpenStore(cfg, &hw)
	if err != nil {
		return err
	}
	return fn(s, p)
}

// ShowRecord prints the stored record, as JSON when asJSON is set.
func ShowRecord(w io.Writer, asJSON bool) error {
	return withStore(func(s storage.Store, p touch.Params) error {
		return showRecord(w, s, p.Mode, asJSON)
	})
}

func showRecord(w io.Writer, s storage.Store, m zone.Mode, asJSON bool) error {
	r, err := touch.LoadRecord(s, m)
	if err != nil {
		return err
	}
	if !asJSON {
		PrintRecord(w, r)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Sensitivity reports the stored touch sensitivity byte and the value the
// engine would use for it.
func Sensitivity() (stored, effective uint8, err error) {
	err = withStore(func(s storage.Store, p touch.Params) error {
		stored, effective, err = readSensitivity(s, p)
		return err
	})
	return stored, effective, err
}

func readSensitivity(s storage.Store, p touch.Params) (stored, effective uint8, err error) {
	r, err := touch.LoadRecord(s, p.Mode)
	if err != nil {
		return 0, 0, err
	}
	def := p.DefaultSensitivity
	if def == 0 {
		def = p.Mode.DefaultSensitivity()
	}
	return r.Sensitivity, touch.ResolveSensitivity(r.Sensitivity, def), nil
}

// SetSensitivity stores a new touch sensitivity. It applies to the next
// calibration pass.
func SetSensitivity(v int) error {
	if v < 0 || v > touch.MaxSensitivity {
		return fmt.Errorf("sensitivity must be 0-%d, got %d", touch.MaxSensitivity, v)
	}
	return withStore(func(s storage.Store, _ touch.Params) error {
		return touch.WriteSensitivity(s, uint8(v))
	})
}

// SetAirSensitivity stores the air sensor sensitivity byte.
func SetAirSensitivity(v int) error {
	if v < 1 || v > 100 {
		return fmt.Errorf("air sensitivity must be 1-100, got %d", v)
	}
	return withStore(func(s storage.Store, _ touch.Params) error {
		return air.WriteSensitivity(s, uint8(v))
	})
}

// InvalidateRecord clears the calibrated flag so the next boot recalibrates.
func InvalidateRecord() error {
	return withStore(func(s storage.Store, _ touch.Params) error {
		return touch.Invalidate(s)
	})
}
