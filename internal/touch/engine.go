// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package touch turns raw zone scans into press states and owns the guided
// calibration pass that produces the thresholds.
package touch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/touch_controller/internal/indicator"
	"github.com/relabs-tech/touch_controller/internal/storage"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

var (
	ErrCalibrating    = errors.New("calibration already in progress")
	ErrNotCalibrating = errors.New("no calibration in progress")
	ErrTouchTimeout   = errors.New("timed out waiting for touch")
)

// Scanner produces one full sweep per call.
type Scanner interface {
	Scan() zone.Frame
}

// Clock is the time source used for flashing and touch timeouts.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// State is the engine's top-level mode.
type State int

const (
	Steady State = iota
	Pending
	Calibrating
)

func (s State) String() string {
	switch s {
	case Steady:
		return "steady"
	case Pending:
		return "pending"
	case Calibrating:
		return "calibrating"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Steady, Pending, Calibrating} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown engine state %q", b)
}

// Phase identifies a step of the calibration pass.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRelease
	PhaseBaseline
	PhaseWaitTouch
	PhaseSettle
	PhaseMeasure
	PhaseZoneDone
	PhaseComplete
	PhaseSkipped
	PhaseAborted
)

var phaseNames = [...]string{
	PhaseNone:      "none",
	PhaseRelease:   "release",
	PhaseBaseline:  "baseline",
	PhaseWaitTouch: "wait_touch",
	PhaseSettle:    "settle",
	PhaseMeasure:   "measure",
	PhaseZoneDone:  "zone_done",
	PhaseComplete:  "complete",
	PhaseSkipped:   "skipped",
	PhaseAborted:   "aborted",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown calibration phase %q", b)
}

// PhaseEvent is reported to the observer whenever the pass changes phase.
// Zone is -1 for phases that cover the whole surface.
type PhaseEvent struct {
	Phase    Phase  `json:"phase"`
	Zone     int    `json:"zone"`
	Baseline uint16 `json:"baseline,omitempty"`
	Lowest   uint16 `json:"lowest,omitempty"`
	Single   uint16 `json:"single,omitempty"`
	Double   uint16 `json:"double,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Params are the startup-time constants of the engine.
type Params struct {
	Mode               zone.Mode
	SampleCount        int
	DetectionDelta     uint16
	DefaultSensitivity uint8 // 0 selects the mode default
	ReleaseDelay       time.Duration
	FlashPeriod        time.Duration
	TouchTimeout       time.Duration // 0 waits forever
	GestureHold        int           // consecutive steady scans before the gesture counts
}

// DefaultParams returns the stock timing for mode m.
func DefaultParams(m zone.Mode) Params {
	return Params{
		Mode:           m,
		SampleCount:    75,
		DetectionDelta: 8,
		ReleaseDelay:   5 * time.Second,
		FlashPeriod:    500 * time.Millisecond,
		GestureHold:    200,
	}
}

type Option func(*Engine)

func WithIndicator(ind indicator.Indicator) Option {
	return func(e *Engine) { e.ind = ind }
}

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithObserver(fn func(PhaseEvent)) Option {
	return func(e *Engine) { e.observe = fn }
}

// Engine owns the calibration record and the calibration state machine.
// It is driven by a single goroutine and is not safe for concurrent use.
type Engine struct {
	p       Params
	store   storage.Store
	ind     indicator.Indicator
	clock   Clock
	observe func(PhaseEvent)

	rec   Record
	sens  uint8
	state State
	force bool
	held  int

	// pass in progress
	passSens   uint8
	work       Record
	phase      Phase
	zone       int
	count      int
	phaseStart time.Time
	flashTick  int
	samples    [zone.MaxZones][]float64
	baseline   [zone.MaxZones]uint16
	noise      [zone.MaxZones]float64
	lowest     [zone.MaxZones]uint16
}

// New loads the record from s and leaves the engine waiting for its
// verification scan. A stored sensitivity of 0 is replaced by the default
// and written back.
func New(s storage.Store, p Params, opts ...Option) (*Engine, error) {
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("invalid zone mode %d", p.Mode)
	}
	if p.SampleCount <= 0 {
		return nil, fmt.Errorf("sample count must be positive, got %d", p.SampleCount)
	}
	if p.DefaultSensitivity == 0 {
		p.DefaultSensitivity = p.Mode.DefaultSensitivity()
	}
	if p.DefaultSensitivity > MaxSensitivity {
		return nil, fmt.Errorf("default sensitivity must be 1-%d, got %d", MaxSensitivity, p.DefaultSensitivity)
	}

	e := &Engine{
		p:       p,
		store:   s,
		ind:     indicator.Nop{},
		clock:   systemClock{},
		observe: func(PhaseEvent) {},
		state:   Pending,
	}
	for _, o := range opts {
		o(e)
	}
	for i := range e.samples {
		if i < p.Mode.Count() {
			e.samples[i] = make([]float64, p.SampleCount)
		}
	}

	rec, err := LoadRecord(s, p.Mode)
	if err != nil {
		return nil, err
	}
	if rec.Sensitivity == 0 {
		rec.Sensitivity = p.DefaultSensitivity
		if err := WriteSensitivity(s, rec.Sensitivity); err != nil {
			log.Printf("calibration: could not store default sensitivity: %v", err)
		}
	}
	e.sens = ResolveSensitivity(rec.Sensitivity, p.DefaultSensitivity)
	rec.Sensitivity = e.sens
	e.rec = rec
	log.Printf("calibration: record loaded (mode=%d calibrated=%t sensitivity=%d)", p.Mode, rec.Calibrated, e.sens)
	return e, nil
}

func (e *Engine) Params() Params { return e.p }
func (e *Engine) State() State   { return e.state }
func (e *Engine) Phase() Phase   { return e.phase }
func (e *Engine) Record() Record { return e.rec }

// Sensitivity returns the percentage applied by the next pass.
func (e *Engine) Sensitivity() uint8 { return e.sens }

// CalibratingZone returns the zone currently being calibrated, or -1.
func (e *Engine) CalibratingZone() int {
	if e.state != Calibrating {
		return -1
	}
	return e.zone
}

// Baselines returns the resting readings captured by the last pass.
func (e *Engine) Baselines() []uint16 {
	return append([]uint16(nil), e.baseline[:e.p.Mode.Count()]...)
}

// Evaluate classifies f against the current thresholds.
func (e *Engine) Evaluate(f zone.Frame) zone.States {
	return Evaluate(&e.rec, f)
}

// SetSensitivity persists v. Existing thresholds are kept until the next
// pass and a running pass finishes with the value it started with. A stored
// 0 falls back to the default; Record reports the resolved value.
func (e *Engine) SetSensitivity(v uint8) error {
	if err := WriteSensitivity(e.store, v); err != nil {
		return err
	}
	e.sens = ResolveSensitivity(v, e.p.DefaultSensitivity)
	e.rec.Sensitivity = e.sens
	log.Printf("calibration: sensitivity set to %d", e.sens)
	return nil
}

// Start requests a pass. The decision is taken on the next scan; force
// skips the flag and gesture checks.
func (e *Engine) Start(force bool) error {
	if e.state == Calibrating {
		return ErrCalibrating
	}
	e.state = Pending
	e.force = e.force || force
	return nil
}

// Cancel abandons a pending or running pass and keeps the previous record.
func (e *Engine) Cancel() error {
	switch e.state {
	case Pending:
		e.state = Steady
		e.force = false
		return nil
	case Calibrating:
		e.abort("cancelled")
		return nil
	}
	return ErrNotCalibrating
}

// Step consumes one scan. Outside a pass it returns the evaluated states;
// during a pass every zone reads unpressed.
func (e *Engine) Step(f zone.Frame) (zone.States, error) {
	switch e.state {
	case Steady:
		st := e.Evaluate(f)
		if e.rec.Calibrated && GestureHeld(e.p.Mode, st) {
			e.held++
		} else {
			e.held = 0
		}
		if e.held >= max(e.p.GestureHold, 1) {
			log.Println("calibration: recalibration gesture detected")
			e.held = 0
			e.state = Pending
		}
		return st, nil
	case Pending:
		return e.decide(f), nil
	}
	return zone.NewStates(e.p.Mode), e.calibrate(f)
}

// RunCalibration requests a pass and drives it to completion from sc.
// Cancelling ctx abandons the pass.
func (e *Engine) RunCalibration(ctx context.Context, sc Scanner, force bool) (Record, error) {
	if err := e.Start(force); err != nil {
		return e.rec, err
	}
	for {
		select {
		case <-ctx.Done():
			e.Cancel()
			return e.rec, ctx.Err()
		default:
		}
		if _, err := e.Step(sc.Scan()); err != nil {
			return e.rec, err
		}
		if e.state == Steady {
			return e.rec, nil
		}
	}
}

func (e *Engine) decide(f zone.Frame) zone.States {
	st := e.Evaluate(f)
	force := e.force
	e.force = false

	var reason string
	switch {
	case force:
		reason = "requested"
	case !e.rec.Calibrated:
		reason = "no stored calibration"
	case GestureHeld(e.p.Mode, st):
		reason = "gesture held"
	}
	if reason == "" {
		e.state = Steady
		e.setAll(indicator.Green)
		e.emit(PhaseEvent{Phase: PhaseSkipped, Zone: -1})
		return st
	}

	log.Printf("calibration: starting pass (%s)", reason)
	e.state = Calibrating
	e.passSens = e.sens
	e.work = Record{Mode: e.p.Mode}
	e.zone = -1
	if e.p.ReleaseDelay > 0 {
		e.enter(PhaseRelease)
	} else {
		e.enter(PhaseBaseline)
	}
	return zone.NewStates(e.p.Mode)
}

func (e *Engine) calibrate(f zone.Frame) error {
	n := e.p.Mode.Count()
	now := e.clock.Now()

	switch e.phase {
	case PhaseRelease:
		elapsed := now.Sub(e.phaseStart)
		if elapsed >= e.p.ReleaseDelay {
			e.enter(PhaseBaseline)
			return nil
		}
		if e.p.FlashPeriod > 0 {
			if tick := int(elapsed / e.p.FlashPeriod); tick != e.flashTick {
				e.flashTick = tick
				e.setAll(flashColor(tick))
			}
		}

	case PhaseBaseline:
		for i := 0; i < n; i++ {
			e.samples[i][e.count] = float64(f.Raw[i])
		}
		e.count++
		if e.count < e.p.SampleCount {
			return nil
		}
		e.captureBaseline()
		e.zone = 0
		e.enter(PhaseWaitTouch)

	case PhaseWaitTouch:
		i := e.zone
		if uint32(f.Raw[i]) >= uint32(e.baseline[i])+uint32(e.p.DetectionDelta) {
			e.enter(PhaseSettle)
			return nil
		}
		if e.p.TouchTimeout > 0 && now.Sub(e.phaseStart) >= e.p.TouchTimeout {
			err := fmt.Errorf("zone %d: %w", i, ErrTouchTimeout)
			e.abort(err.Error())
			return err
		}

	case PhaseSettle:
		e.count++
		if e.count < e.p.SampleCount {
			return nil
		}
		e.lowest[e.zone] = f.Raw[e.zone]
		e.enter(PhaseMeasure)

	case PhaseMeasure:
		i := e.zone
		e.lowest[i] = min(e.lowest[i], f.Raw[i])
		e.count++
		if e.count < e.p.SampleCount {
			return nil
		}
		return e.finishZone(i)
	}
	return nil
}

func (e *Engine) captureBaseline() {
	worst, worstZone := 0.0, 0
	for i := 0; i < e.p.Mode.Count(); i++ {
		e.baseline[i] = uint16(math.Round(stat.Mean(e.samples[i], nil)))
		e.noise[i] = stat.StdDev(e.samples[i], nil)
		if e.noise[i] > worst {
			worst, worstZone = e.noise[i], i
		}
	}
	log.Printf("calibration: baseline captured (max noise %.2f on zone %d)", worst, worstZone)
}

func (e *Engine) finishZone(i int) error {
	b, low := e.baseline[i], e.lowest[i]
	single, double := Thresholds(b, low, e.passSens)
	if low <= b {
		logZeroWindow(i, b, low)
	}
	e.work.Single[i] = single
	ev := PhaseEvent{Phase: PhaseZoneDone, Zone: i, Baseline: b, Lowest: low, Single: single}
	if e.p.Mode.DoubleThreshold() {
		e.work.Double[i] = double
		ev.Double = double
	}
	log.Printf("calibration: zone %d baseline=%d lowest=%d single=%d double=%d", i, b, low, single, ev.Double)

	e.set(i/2, indicator.Green)
	e.emit(ev)

	if i+1 < e.p.Mode.Count() {
		e.zone = i + 1
		e.enter(PhaseWaitTouch)
		return nil
	}
	return e.complete()
}

// complete adopts the new thresholds even if they cannot be stored.
func (e *Engine) complete() error {
	e.work.Calibrated = true
	e.work.Sensitivity = e.rec.Sensitivity
	e.rec = e.work
	e.state = Steady
	e.phase = PhaseComplete

	ev := PhaseEvent{Phase: PhaseComplete, Zone: -1}
	err := SaveRecord(e.store, e.rec)
	if err != nil {
		ev.Error = err.Error()
		log.Printf("calibration: pass complete but record not saved: %v", err)
	} else {
		log.Println("calibration: pass complete, record saved")
	}
	e.emit(ev)
	return err
}

func (e *Engine) abort(reason string) {
	log.Printf("calibration: pass aborted: %s", reason)
	e.state = Steady
	e.phase = PhaseAborted
	e.setAll(indicator.Off)
	e.emit(PhaseEvent{Phase: PhaseAborted, Zone: e.zone, Error: reason})
}

func (e *Engine) enter(p Phase) {
	e.phase = p
	e.count = 0
	e.phaseStart = e.clock.Now()

	switch p {
	case PhaseRelease:
		e.flashTick = 0
		e.setAll(flashColor(0))
	case PhaseWaitTouch:
		e.set(e.zone/2, indicator.Red)
	case PhaseSettle:
		e.set(e.zone/2, indicator.Blue)
	case PhaseMeasure:
		e.set(e.zone/2, indicator.Silver)
	}
	e.emit(PhaseEvent{Phase: p, Zone: e.zone})
}

func flashColor(tick int) indicator.Color {
	if tick%2 == 0 {
		return indicator.Red
	}
	return indicator.Purple
}

func (e *Engine) set(group int, c indicator.Color) {
	e.ind.SetIndicator(group, c)
	e.refresh()
}

func (e *Engine) setAll(c indicator.Color) {
	for g := 0; g < e.p.Mode.Groups(); g++ {
		e.ind.SetIndicator(g, c)
	}
	e.refresh()
}

func (e *Engine) refresh() {
	if err := e.ind.Refresh(); err != nil {
		log.Printf("calibration: indicator refresh failed: %v", err)
	}
}

func (e *Engine) emit(ev PhaseEvent) {
	e.observe(ev)
}
