// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package storage provides the byte-addressed regions that hold the
// calibration record across power cycles.
package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Size is the number of bytes every backend must expose.
const Size = 128

// ErrShortStore is returned when an access falls outside the region.
var ErrShortStore = errors.New("storage: access beyond end of region")

// Store is a fixed-size, byte-addressed persistent region.
type Store interface {
	io.ReaderAt
	io.WriterAt
}

// Memory is a volatile Store used by tests and simulation runs.
type Memory struct {
	mu  sync.Mutex
	buf []byte
	// Writes records every WriteAt offset in order.
	Writes []int64
}

// NewMemory returns a zero-filled region of the given size.
func NewMemory(size int) *Memory {
	return &Memory{buf: make([]byte, size)}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.buf), len(p), off); err != nil {
		return 0, err
	}
	return copy(p, m.buf[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(len(m.buf), len(p), off); err != nil {
		return 0, err
	}
	m.Writes = append(m.Writes, off)
	return copy(m.buf[off:], p), nil
}

// Bytes returns a copy of the region contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.buf...)
}

func checkRange(size, n int, off int64) error {
	if off < 0 || off+int64(n) > int64(size) {
		return fmt.Errorf("%w: offset %d length %d size %d", ErrShortStore, off, n, size)
	}
	return nil
}
