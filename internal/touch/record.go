// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package touch

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/relabs-tech/touch_controller/internal/storage"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Record layout. Offsets are fixed across firmware versions.
const (
	thresholdRegion   = 64
	doubleOffset      = 32
	FlagOffset        = 64
	SensitivityOffset = 65

	// CalibratedFlag marks a record written by a completed pass.
	CalibratedFlag = 0xFF
	MaxSensitivity = 100
)

// Record is the persisted calibration state.
type Record struct {
	Mode       zone.Mode             `json:"mode"`
	Single     [zone.MaxZones]uint16 `json:"single"`
	Double     [zone.MaxZones]uint16 `json:"double"`
	Calibrated bool                  `json:"calibrated"`

	// Sensitivity is the raw stored byte as loaded, 0 meaning unset.
	// The engine keeps the resolved percentage here.
	Sensitivity uint8 `json:"sensitivity"`
}

// LoadRecord reads the record for mode m from s.
func LoadRecord(s storage.Store, m zone.Mode) (Record, error) {
	buf := make([]byte, SensitivityOffset+1)
	if _, err := s.ReadAt(buf, 0); err != nil {
		return Record{Mode: m}, fmt.Errorf("failed to read calibration record: %w", err)
	}
	return decodeRecord(buf, m), nil
}

func decodeRecord(buf []byte, m zone.Mode) Record {
	r := Record{
		Mode:        m,
		Calibrated:  buf[FlagOffset] == CalibratedFlag,
		Sensitivity: buf[SensitivityOffset],
	}
	n := m.Count()
	for i := 0; i < n; i++ {
		r.Single[i] = binary.LittleEndian.Uint16(buf[2*i:])
		if m.DoubleThreshold() {
			r.Double[i] = binary.LittleEndian.Uint16(buf[doubleOffset+2*i:])
		}
	}
	return r
}

// SaveRecord writes thresholds, then sensitivity, then the flag byte, so a
// partial write never leaves a record that looks complete.
func SaveRecord(s storage.Store, r Record) error {
	buf := make([]byte, thresholdRegion)
	for i := 0; i < r.Mode.Count(); i++ {
		binary.LittleEndian.PutUint16(buf[2*i:], r.Single[i])
		if r.Mode.DoubleThreshold() {
			binary.LittleEndian.PutUint16(buf[doubleOffset+2*i:], r.Double[i])
		}
	}
	if _, err := s.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("failed to write thresholds: %w", err)
	}
	if _, err := s.WriteAt([]byte{r.Sensitivity}, SensitivityOffset); err != nil {
		return fmt.Errorf("failed to write sensitivity: %w", err)
	}
	var flag byte
	if r.Calibrated {
		flag = CalibratedFlag
	}
	if _, err := s.WriteAt([]byte{flag}, FlagOffset); err != nil {
		return fmt.Errorf("failed to write calibration flag: %w", err)
	}
	return nil
}

// Invalidate clears the flag so the next boot runs a full pass.
func Invalidate(s storage.Store) error {
	if _, err := s.WriteAt([]byte{0}, FlagOffset); err != nil {
		return fmt.Errorf("failed to clear calibration flag: %w", err)
	}
	return nil
}

// WriteSensitivity stores only the sensitivity byte.
func WriteSensitivity(s storage.Store, v uint8) error {
	if v > MaxSensitivity {
		return fmt.Errorf("sensitivity must be 0-%d, got %d", MaxSensitivity, v)
	}
	if _, err := s.WriteAt([]byte{v}, SensitivityOffset); err != nil {
		return fmt.Errorf("failed to write sensitivity: %w", err)
	}
	return nil
}

// ResolveSensitivity maps the stored byte to the percentage used for
// thresholds: 0 becomes def, anything above 100 is capped.
func ResolveSensitivity(stored, def uint8) uint8 {
	switch {
	case stored == 0:
		return def
	case stored > MaxSensitivity:
		return MaxSensitivity
	}
	return stored
}

// Thresholds derives the detection thresholds for one zone from its
// resting baseline and the lowest reading held while touched.
func Thresholds(baseline, lowest uint16, sensitivity uint8) (single, double uint16) {
	var window uint32
	if lowest > baseline {
		window = uint32(lowest - baseline)
	}
	scaled := window * uint32(sensitivity) / 100
	s := uint32(baseline) + scaled
	d := s + window
	if d > 0xFFFF {
		d = 0xFFFF
	}
	return uint16(s), uint16(d)
}

func logZeroWindow(i int, baseline, lowest uint16) {
	log.Printf("calibration: zone %d has no touch window (baseline %d, lowest %d), it will read as pressed", i, baseline, lowest)
}
