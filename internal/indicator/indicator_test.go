package indicator

import (
	"bytes"
	"errors"
	"image"
	"testing"
)

type failing struct{ err error }

func (f failing) SetIndicator(int, Color) {}
func (f failing) Refresh() error          { return f.err }

func TestStripGroupPixels(t *testing.T) {
	var buf bytes.Buffer
	s := newStrip(&buf, 5)
	s.SetIndicator(1, Red)
	s.SetIndicator(2, Blue)
	s.SetIndicator(3, Green) // pixel 6 is past the end
	if err := s.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	want := []byte{
		0, 0, 0,
		0, 0, 0,
		0xFF, 0, 0,
		0, 0, 0,
		0, 0, 0xFF,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("pixels = %v, want %v", buf.Bytes(), want)
	}

	buf.Reset()
	if err := s.Refresh(); err != nil || buf.Len() != 0 {
		t.Fatalf("clean refresh wrote %d bytes, err %v", buf.Len(), err)
	}
}

type fakePanel struct {
	draws int
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	p.draws++
	return nil
}

func TestDisplayRedrawsOnlyWhenDirty(t *testing.T) {
	p := &fakePanel{}
	d := newDisplay(p, 16)
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if p.draws != 1 {
		t.Fatalf("draws = %d, want 1", p.draws)
	}
	d.SetIndicator(20, Red) // out of range is ignored
	d.SetIndicator(4, Silver)
	if err := d.Refresh(); err != nil {
		t.Fatal(err)
	}
	if p.draws != 2 {
		t.Fatalf("draws = %d, want 2", p.draws)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	e1 := errors.New("one")
	e2 := errors.New("two")
	m := Multi{failing{e1}, Nop{}, failing{e2}}
	err := m.Refresh()
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestColorName(t *testing.T) {
	if Silver.Name() != "silver" || (Color{1, 2, 3}).Name() != "rgb" {
		t.Fatal("unexpected color names")
	}
}
