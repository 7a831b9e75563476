package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/relabs-tech/touch_controller/internal/acquisition"
	"github.com/relabs-tech/touch_controller/internal/touch"
	"github.com/relabs-tech/touch_controller/internal/zone"
)

func TestPrintScanMarksStates(t *testing.T) {
	rec := touch.Record{Mode: zone.Sixteen, Calibrated: true}
	for i := 0; i < 16; i++ {
		rec.Single[i] = 125
		rec.Double[i] = 175
	}
	f := flat(zone.Sixteen, 100)
	f.Raw[0] = 125
	f.Raw[1] = 175

	var out, capture bytes.Buffer
	if err := printScan(&out, &capture, &rec, f); err != nil {
		t.Fatal(err)
	}
	fields := strings.Fields(out.String())
	if len(fields) != 16 || fields[0] != "125S" || fields[1] != "175D" || fields[2] != "100." {
		t.Fatalf("printed %q", out.String())
	}

	back, err := acquisition.ParseFrame(capture.String())
	if err != nil {
		t.Fatal(err)
	}
	if back != f {
		t.Fatalf("captured frame %+v, want %+v", back, f)
	}
}

func TestPrintScanWithoutCapture(t *testing.T) {
	rec := touch.Record{Mode: zone.ThirtyTwo}
	var out bytes.Buffer
	if err := printScan(&out, nil, &rec, flat(zone.ThirtyTwo, 300)); err != nil {
		t.Fatal(err)
	}
	if strings.Count(out.String(), "300.") != 32 {
		t.Fatalf("printed %q", out.String())
	}
}

func TestPromptsAndRecordTable(t *testing.T) {
	var out bytes.Buffer
	p := promptWriter{out: &out, zones: 16}
	p.observe(touch.PhaseEvent{Phase: touch.PhaseWaitTouch, Zone: 3})
	p.observe(touch.PhaseEvent{Phase: touch.PhaseZoneDone, Zone: 3, Baseline: 100, Lowest: 150, Single: 125, Double: 175})
	p.observe(touch.PhaseEvent{Phase: touch.PhaseAborted, Zone: 4, Error: "cancelled"})
	for _, want := range []string{"Zone 4/16", "single=125 double=175", "aborted: cancelled"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("prompts missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	rec := touch.Record{Mode: zone.ThirtyTwo, Calibrated: true, Sensitivity: 97}
	rec.Single[31] = 4242
	PrintRecord(&out, rec)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 34 {
		t.Fatalf("table has %d lines", len(lines))
	}
	if got := strings.Fields(lines[33]); got[0] != "31" || got[1] != "4242" || got[2] != "-" {
		t.Fatalf("last row %q", lines[33])
	}
}
