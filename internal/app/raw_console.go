// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/relabs-tech/touch_controller/internal/acquisition"
	"github.com/relabs-tech/touch_controller/internal/config"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

var stateMarks = map[zone.State]string{
	zone.Unpressed:   ".",
	zone.SinglePress: "S",
	zone.DoublePress: "D",
}

// formatRaw renders one scan as raw values with a state mark per zone.
func formatRaw(f zone.Frame, st zone.States) string {
	var b strings.Builder
	for i := 0; i < f.N; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%5d%s", f.Raw[i], stateMarks[st.S[i]])
	}
	return b.String()
}

// RunRawConsole prints every scan against the stored thresholds without
// running the calibration state machine. A non-empty capture path records
// the scans in replay format.
func RunRawConsole(capture string, period time.Duration) error {
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
	p, err := EngineParams(cfg)
	if err != nil {
		return err
	}
	rec, err := touch.LoadRecord(store, p.Mode)
	if err != nil {
		return err
	}
	if !rec.Calibrated {
		log.Println("raw: no stored calibration, every zone reads unpressed")
	}

	var out io.Writer
	if capture != "" {
		fh, err := os.Create(capture)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		defer fh.Close()
		bw := bufio.NewWriter(fh)
		defer bw.Flush()
		out = bw
		fmt.Fprintf(out, "# %d-zone capture %s\n", p.Mode.Count(), time.Now().Format(time.RFC3339))
		log.Printf("raw: capturing scans to %s", capture)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		f := scanner.Scan()
		if err := printScan(os.Stdout, out, &rec, f); err != nil {
			return err
		}
	}
}

func printScan(w io.Writer, capture io.Writer, rec *touch.Record, f zone.Frame) error {
	fmt.Fprintln(w, formatRaw(f, touch.Evaluate(rec, f)))
	if capture == nil {
		return nil
	}
	_, err := fmt.Fprintln(capture, acquisition.FormatFrame(f))
	return err
}
