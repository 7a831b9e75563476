package storage

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(8)
	if _, err := m.WriteAt([]byte{1, 2}, 6); err != nil {
		t.Fatalf("write at end: %v", err)
	}
	if _, err := m.WriteAt([]byte{1, 2}, 7); !errors.Is(err, ErrShortStore) {
		t.Fatalf("expected ErrShortStore, got %v", err)
	}
	buf := make([]byte, 2)
	if _, err := m.ReadAt(buf, -1); !errors.Is(err, ErrShortStore) {
		t.Fatalf("expected ErrShortStore for negative offset, got %v", err)
	}
	if _, err := m.ReadAt(buf, 6); err != nil || !bytes.Equal(buf, []byte{1, 2}) {
		t.Fatalf("read back %v, %v", buf, err)
	}
}

func TestFilePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "record.bin")

	f, err := OpenFile(path, Size)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xAA, 0xBB}, 64); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err = OpenFile(path, Size)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 3)
	if _, err := f.ReadAt(buf, 63); err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := []byte{0, 0xAA, 0xBB}; !bytes.Equal(buf, want) {
		t.Fatalf("got %x, want %x", buf, want)
	}
	if _, err := f.ReadAt(buf, Size-1); !errors.Is(err, ErrShortStore) {
		t.Fatalf("expected ErrShortStore, got %v", err)
	}
}

func TestAT24Read(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: AT24DefaultAddr, W: []byte{0x00, 0x40}, R: []byte{0xFF, 0x32}},
	}}
	e := NewAT24(bus, AT24DefaultAddr, Size)
	buf := make([]byte, 2)
	if _, err := e.ReadAt(buf, 64); err != nil {
		t.Fatalf("read: %v", err)
	}
	if buf[0] != 0xFF || buf[1] != 0x32 {
		t.Fatalf("got %x", buf)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("playback: %v", err)
	}
}

func TestAT24WriteSplitsPages(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: AT24DefaultAddr, W: []byte{0x00, 0x1E, 1, 2}},
		{Addr: AT24DefaultAddr, W: []byte{0x00, 0x20, 3}},
	}}
	e := NewAT24(bus, AT24DefaultAddr, Size)
	e.writeDelay = 0
	n, err := e.WriteAt([]byte{1, 2, 3}, 30)
	if err != nil || n != 3 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("playback: %v", err)
	}
}
