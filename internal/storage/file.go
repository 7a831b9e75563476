// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File backs the region with a regular file, grown to size on open.
type File struct {
	mu   sync.Mutex
	f    *os.File
	size int
}

// OpenFile opens (or creates) path and makes sure it holds size bytes.
// Existing content is preserved.
func OpenFile(path string, size int) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat storage file: %w", err)
	}
	if st.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size storage file: %w", err)
		}
	}
	return &File{f: f, size: size}, nil
}

func (s *File) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkRange(s.size, len(p), off); err != nil {
		return 0, err
	}
	return s.f.ReadAt(p, off)
}

// WriteAt writes p and syncs before returning so ordering between
// successive writes survives a power loss.
func (s *File) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkRange(s.size, len(p), off); err != nil {
		return 0, err
	}
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, s.f.Sync()
}

func (s *File) Close() error {
	return s.f.Close()
}
