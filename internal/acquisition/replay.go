// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Replay plays back recorded frames in a loop.
type Replay struct {
	frames   []zone.Frame
	pos      int
	interval time.Duration
}

// NewReplay cycles through frames, sleeping interval before each one.
func NewReplay(frames []zone.Frame, interval time.Duration) *Replay {
	return &Replay{frames: frames, interval: interval}
}

// LoadReplay reads a capture file of scan sentences, one per line, as
// written by the raw console. Blank lines and # comments are ignored.
func LoadReplay(path string, m zone.Mode, interval time.Duration) (*Replay, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer file.Close()

	var frames []zone.Frame
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f, err := ParseFrame(line)
		if err != nil {
			return nil, fmt.Errorf("replay line %d: %w", lineNum, err)
		}
		if f.N != m.Count() {
			return nil, fmt.Errorf("replay line %d: %d zones, want %d", lineNum, f.N, m.Count())
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading replay file: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("replay file %s has no frames", path)
	}
	return NewReplay(frames, interval), nil
}

func (r *Replay) Scan() zone.Frame {
	if r.interval > 0 {
		time.Sleep(r.interval)
	}
	f := r.frames[r.pos%len(r.frames)]
	r.pos++
	return f
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int { return len(r.frames) }
