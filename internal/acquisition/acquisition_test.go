package acquisition

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

type fakeMux struct{ addr uint8 }

func (m *fakeMux) Select(addr uint8) { m.addr = addr }

// encodingBank reports addr*10+channel so placement can be checked.
type encodingBank struct {
	mux      *fakeMux
	channels int
}

func (b *encodingBank) Channels() int { return b.channels }

func (b *encodingBank) Sense(out []uint16) {
	for ch := range out {
		out[ch] = uint16(b.mux.addr)*10 + uint16(ch)
	}
}

func TestSweepSixteen(t *testing.T) {
	mux := &fakeMux{}
	s, err := NewSweep(zone.Sixteen, mux, &encodingBank{mux: mux, channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	f := s.Scan()
	if f.N != 16 {
		t.Fatalf("N = %d", f.N)
	}
	for a := 0; a < 8; a++ {
		if got := f.Raw[a]; got != uint16(a*10) {
			t.Errorf("zone %d = %d, want %d", a, got, a*10)
		}
		if got := f.Raw[a+8]; got != uint16(a*10+1) {
			t.Errorf("zone %d = %d, want %d", a+8, got, a*10+1)
		}
	}
}

func TestSweepThirtyTwo(t *testing.T) {
	mux := &fakeMux{}
	s, err := NewSweep(zone.ThirtyTwo, mux, &encodingBank{mux: mux, channels: 4})
	if err != nil {
		t.Fatal(err)
	}
	f := s.Scan()
	tests := []struct {
		zone int
		want uint16
	}{
		{6, 0},  // addr 0, channel 0
		{1, 70}, // addr 7, channel 0
		{30, 1}, // addr 0, channel 1
		{22, 2}, // addr 0, channel 2
		{9, 73}, // addr 7, channel 3
		{14, 3}, // addr 0, channel 3
	}
	for _, tt := range tests {
		if got := f.Raw[tt.zone]; got != tt.want {
			t.Errorf("zone %d = %d, want %d", tt.zone, got, tt.want)
		}
	}

	seen := map[int]bool{}
	for _, z := range sensorMap {
		seen[z] = true
	}
	if len(seen) != zone.MaxZones {
		t.Fatalf("sensor map covers %d zones", len(seen))
	}
}

func TestSweepRejectsNarrowBank(t *testing.T) {
	mux := &fakeMux{}
	if _, err := NewSweep(zone.ThirtyTwo, mux, &encodingBank{mux: mux, channels: 2}); err == nil {
		t.Fatal("expected error for two-channel bank in 32-zone mode")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f := zone.NewFrame(zone.Sixteen)
	for i := range f.Values() {
		f.Raw[i] = uint16(100 + i*7)
	}
	f.Raw[15] = 65535
	line := FormatFrame(f)
	if !strings.HasPrefix(line, "$TCSCN,16,100,107,") {
		t.Fatalf("line = %q", line)
	}
	got, err := ParseFrame(line + "\r\n")
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	if got != f {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestParseFrameErrors(t *testing.T) {
	good := FormatFrame(zone.NewFrame(zone.Sixteen))
	bad := []string{
		good[:len(good)-2] + "00",
		"$TCSCN,16,1,2,3*" + "00",
		"$TCSCN,12,1,2",
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
	}
	for _, line := range bad {
		if _, err := ParseFrame(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestBridgeSkipsNoise(t *testing.T) {
	f16 := zone.NewFrame(zone.Sixteen)
	f16.Raw[3] = 321
	f32 := zone.NewFrame(zone.ThirtyTwo)
	stream := strings.Join([]string{
		"boot banner",
		"$TCSCN,16,1*00",
		FormatFrame(f32),
		FormatFrame(f16),
		"",
	}, "\n")
	b := NewBridge(zone.Sixteen, io.NopCloser(strings.NewReader(stream)))
	b.retry = 0

	if got := b.Scan(); got != f16 {
		t.Fatalf("first scan = %v", got)
	}
	// stream exhausted: last frame is repeated
	if got := b.Scan(); got != f16 {
		t.Fatalf("scan after EOF = %v", got)
	}
	if b.errors != 1 {
		t.Fatalf("errors = %d", b.errors)
	}
}

func TestLoadReplay(t *testing.T) {
	a := zone.NewFrame(zone.Sixteen)
	a.Raw[0] = 10
	b := zone.NewFrame(zone.Sixteen)
	b.Raw[0] = 20
	path := filepath.Join(t.TempDir(), "capture.nmea")
	content := "# capture\n" + FormatFrame(a) + "\n\n" + FormatFrame(b) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadReplay(path, zone.Sixteen, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
	for i, want := range []uint16{10, 20, 10} {
		if got := r.Scan().Raw[0]; got != want {
			t.Fatalf("scan %d = %d, want %d", i, got, want)
		}
	}
	if _, err := LoadReplay(path, zone.ThirtyTwo, 0); err == nil {
		t.Fatal("expected zone count mismatch")
	}
}

func TestADCBank(t *testing.T) {
	port := &spitest.Playback{Playback: conntest.Playback{Ops: []conntest.IO{
		{W: []byte{0x01, 0x80, 0x00}, R: []byte{0x00, 0x02, 0x10}},
		{W: []byte{0x01, 0x90, 0x00}, R: []byte{0x00, 0xFF, 0xFF}},
	}}}
	b, err := NewADCBank(port, 2)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]uint16, 2)
	b.Sense(out)
	if out[0] != 0x210 || out[1] != 0x3FF {
		t.Fatalf("out = %#x", out)
	}
	if err := port.Close(); err != nil {
		t.Fatalf("playback: %v", err)
	}
}

// slowPin reads low for a fixed number of polls after being switched to
// input, like a receive pad charging through the sense resistor.
type slowPin struct {
	*gpiotest.Pin
	delay int
	left  int
}

func (p *slowPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.left = p.delay
	return p.Pin.In(pull, edge)
}

func (p *slowPin) Read() gpio.Level {
	if p.left > 0 {
		p.left--
		return gpio.Low
	}
	return gpio.High
}

func TestChargeBank(t *testing.T) {
	send := &gpiotest.Pin{N: "SEND"}
	rx := []gpio.PinIO{
		&slowPin{Pin: &gpiotest.Pin{N: "RX1"}, delay: 4},
		&slowPin{Pin: &gpiotest.Pin{N: "RX2"}, delay: 50},
	}
	b := NewChargeBank(send, rx, 3, 20)
	out := make([]uint16, 2)
	b.Sense(out)
	if out[0] != 12 {
		t.Fatalf("rx1 = %d, want 12", out[0])
	}
	if out[1] != 0 {
		t.Fatalf("rx2 = %d, want 0 after timeout", out[1])
	}
	if send.L != gpio.High {
		t.Fatal("send pin left low")
	}
}

// deadPin is a disconnected receive pad: it never charges.
type deadPin struct {
	*gpiotest.Pin
	reads int
}

func (p *deadPin) Read() gpio.Level {
	p.reads++
	return gpio.Low
}

func TestChargeBankDisconnectedPadWithoutTimeout(t *testing.T) {
	dead := &deadPin{Pin: &gpiotest.Pin{N: "RX1"}}
	b := NewChargeBank(&gpiotest.Pin{N: "SEND"}, []gpio.PinIO{dead}, 3, 0)
	out := []uint16{0xBEEF}

	done := make(chan struct{})
	go func() {
		b.Sense(out)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sense blocked on a pad that never charges")
	}
	if out[0] != 0 {
		t.Fatalf("dead pad = %d, want 0", out[0])
	}
	if dead.reads != DefaultChargeTimeout {
		t.Fatalf("polled %d times, want %d", dead.reads, DefaultChargeTimeout)
	}
}

func TestGPIOSelector(t *testing.T) {
	pins := [3]*gpiotest.Pin{{N: "M0"}, {N: "M1"}, {N: "M2"}}
	s := NewGPIOSelector([3]gpio.PinOut{pins[0], pins[1], pins[2]})
	s.Select(5)
	want := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	for i, p := range pins {
		if p.L != want[i] {
			t.Fatalf("pin %d = %v, want %v", i, p.L, want[i])
		}
	}
}
