// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/touch"
)

// promptWriter turns phase events into operator instructions.
type promptWriter struct {
	out   io.Writer
	zones int
}

func (p promptWriter) observe(ev touch.PhaseEvent) {
	switch ev.Phase {
	case touch.PhaseRelease:
		fmt.Fprintln(p.out, "Take your hands off the surface (indicators flash red/purple).")
	case touch.PhaseBaseline:
		fmt.Fprintln(p.out, "Measuring baseline, keep the surface clear...")
	case touch.PhaseWaitTouch:
		fmt.Fprintf(p.out, "\nZone %d/%d: touch and hold the zone lit red.\n", ev.Zone+1, p.zones)
	case touch.PhaseSettle:
		fmt.Fprintln(p.out, "  touch detected, keep holding")
	case touch.PhaseMeasure:
		fmt.Fprintln(p.out, "  measuring")
	case touch.PhaseZoneDone:
		fmt.Fprintf(p.out, "  zone %d: baseline=%d lowest=%d single=%d", ev.Zone, ev.Baseline, ev.Lowest, ev.Single)
		if ev.Double != 0 {
			fmt.Fprintf(p.out, " double=%d", ev.Double)
		}
		fmt.Fprintln(p.out)
	case touch.PhaseComplete:
		fmt.Fprintln(p.out, "\nCalibration complete.")
	case touch.PhaseSkipped:
		fmt.Fprintln(p.out, "Stored calibration is valid, nothing to do (use -force to recalibrate).")
	case touch.PhaseAborted:
		fmt.Fprintf(p.out, "\nCalibration aborted: %s\n", ev.Error)
	}
}

// PrintRecord writes the thresholds of r as a table.
func PrintRecord(w io.Writer, r touch.Record) {
	fmt.Fprintf(w, "mode=%d calibrated=%t sensitivity=%d\n", r.Mode, r.Calibrated, r.Sensitivity)
	fmt.Fprintln(w, "zone  single  double")
	for i := 0; i < r.Mode.Count(); i++ {
		if r.Mode.DoubleThreshold() {
			fmt.Fprintf(w, "%4d  %6d  %6d\n", i, r.Single[i], r.Double[i])
		} else {
			fmt.Fprintf(w, "%4d  %6d       -\n", i, r.Single[i])
		}
	}
}

func writeRecordJSON(path string, r touch.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// RunCalibration runs one guided pass from the terminal. Without force the
// pass only runs when the stored record is invalid or the gesture is held.
// A non-empty export path receives the resulting record as JSON.
func RunCalibration(force bool, export string) error {
	cfg := config.Get()

	var hw closers
	defer hw.Close()

	scanner, err := OpenScanner(cfg, &hw)
	if err != nil {
		return err
	}
	store, err := OpenStore(cfg, &hw)
	if err != nil {
		return err
	}
	ind := OpenIndicator(cfg, &hw)

	p, err := EngineParams(cfg)
	if err != nil {
		return err
	}
	prompts := promptWriter{out: os.Stdout, zones: p.Mode.Count()}
	e, err := touch.New(store, p, touch.WithIndicator(ind), touch.WithObserver(prompts.observe))
	if err != nil {
		return err
	}

	fmt.Printf("=== Touch Calibration (%d zones) ===\n", p.Mode.Count())
	if force {
		fmt.Println("Each zone lights red in turn. Touch it firmly and hold until it turns green.")
		fmt.Print("Press ENTER to begin...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := e.RunCalibration(ctx, scanner, force)
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}

	fmt.Println()
	PrintRecord(os.Stdout, rec)
	if export != "" {
		if err := writeRecordJSON(export, rec); err != nil {
			return fmt.Errorf("export record: %w", err)
		}
		fmt.Printf("Saved to %s\n", export)
	}
	return nil
}
