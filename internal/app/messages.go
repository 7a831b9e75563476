// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"time"

	"github.com/relabs-tech/touch_controller/internal/air"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Command is accepted on the command topic and the web API.
type Command struct {
	Action string `json:"action"` // calibrate, cancel, sensitivity, air_sensitivity, status
	Value  int    `json:"value,omitempty"`
}

// ZoneEvent is published for every zone transition.
type ZoneEvent struct {
	Zone  int        `json:"zone"`
	State zone.State `json:"state"`
	Raw   uint16     `json:"raw"`
}

// Status is the periodic snapshot of the controller, also used as the
// raw monitor payload.
type Status struct {
	Time        time.Time    `json:"time"`
	Mode        int          `json:"mode"`
	State       touch.State  `json:"state"`
	Phase       touch.Phase  `json:"phase"`
	Zone        int          `json:"zone"`
	Calibrated  bool         `json:"calibrated"`
	Sensitivity uint8        `json:"sensitivity"`
	Raw         []uint16     `json:"raw"`
	Single      []uint16     `json:"single"`
	Double      []uint16     `json:"double,omitempty"`
	Baselines   []uint16     `json:"baselines"`
	Air         *air.Reading `json:"air,omitempty"`
}

func snapshot(e *touch.Engine, f zone.Frame, rd *air.Reading, now time.Time) Status {
	rec := e.Record()
	m := e.Params().Mode
	n := m.Count()
	s := Status{
		Time:        now,
		Mode:        n,
		State:       e.State(),
		Phase:       e.Phase(),
		Zone:        e.CalibratingZone(),
		Calibrated:  rec.Calibrated,
		Sensitivity: e.Sensitivity(),
		Raw:         append([]uint16(nil), f.Values()...),
		Single:      append([]uint16(nil), rec.Single[:n]...),
		Baselines:   e.Baselines(),
		Air:         rd,
	}
	if m.DoubleThreshold() {
		s.Double = append([]uint16(nil), rec.Double[:n]...)
	}
	return s
}
