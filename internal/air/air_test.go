package air

import (
	"testing"

	"github.com/relabs-tech/touch_controller/internal/storage"
)

type fixedReader struct {
	values []uint16
}

func (r *fixedReader) Channels() int { return len(r.values) }

func (r *fixedReader) Sense(out []uint16) { copy(out, r.values) }

func TestNewWritesDefaultSensitivity(t *testing.T) {
	mem := storage.NewMemory(storage.Size)
	a, err := New(&fixedReader{values: make([]uint16, 8)}, mem, 4, 100)
	if err != nil {
		t.Fatal(err)
	}
	if a.Sensitivity() != DefaultSensitivity || mem.Bytes()[SensitivityOffset] != DefaultSensitivity {
		t.Fatalf("sensitivity %d stored %d", a.Sensitivity(), mem.Bytes()[SensitivityOffset])
	}
	if err := a.SetSensitivity(0); err == nil {
		t.Fatal("expected error for 0")
	}
}

func TestNewNeedsSixChannels(t *testing.T) {
	if _, err := New(&fixedReader{values: make([]uint16, 4)}, storage.NewMemory(storage.Size), 4, 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestSampleMaskAndPosition(t *testing.T) {
	r := &fixedReader{values: []uint16{800, 800, 800, 20, 800, 800}}
	a, err := New(r, storage.NewMemory(storage.Size), 4, 100)
	if err != nil {
		t.Fatal(err)
	}
	a.Calibrate()
	if a.Usable() != 5 {
		t.Fatalf("usable = %d", a.Usable())
	}

	if rd := a.Sample(); rd.Mask != 0 || rd.Position != 0 {
		t.Fatalf("idle reading %+v", rd)
	}

	// 50% of 800 is the limit; sensor 3 never calibrated
	r.values = []uint16{399, 400, 100, 0, 300, 800}
	rd := a.Sample()
	if want := uint8(1<<0 | 1<<2 | 1<<4); rd.Mask != want {
		t.Fatalf("mask = %06b, want %06b", rd.Mask, want)
	}
	if rd.Position != 0.833 {
		t.Fatalf("position = %v", rd.Position)
	}
}

func TestHandPosition(t *testing.T) {
	tests := []struct {
		mask uint8
		want float64
	}{
		{0, 0},
		{0b000001, 0.167},
		{0b000011, 0.333},
		{0b100000, 1},
	}
	for _, tt := range tests {
		if got := HandPosition(tt.mask); got != tt.want {
			t.Errorf("HandPosition(%06b) = %v, want %v", tt.mask, got, tt.want)
		}
	}
}
