// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/touch_controller/internal/zone"
)

// Frames travel as NMEA-style sentences so the bridge can reuse the same
// checksum and framing as the GPS tooling:
//
//	$TCSCN,<n>,<raw0>,...,<raw n-1>*<xor>
const (
	frameTalker = "TC"
	TypeSCN     = "SCN"
)

var ErrFrameSize = errors.New("frame zone count does not match its values")

// SCN is a parsed scan sentence.
type SCN struct {
	nmea.BaseSentence
	Frame zone.Frame
}

func init() {
	nmea.MustRegisterParser(TypeSCN, parseSCN)
}

func parseSCN(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	n := int(p.Int64(0, "zone count"))
	if err := p.Err(); err != nil {
		return nil, err
	}
	if _, err := zone.ParseMode(n); err != nil {
		return nil, err
	}
	if len(s.Fields) != n+1 {
		return nil, fmt.Errorf("%w: %d zones, %d values", ErrFrameSize, n, len(s.Fields)-1)
	}
	f := zone.Frame{N: n}
	for i := 0; i < n; i++ {
		v := p.Int64(i+1, "raw value")
		if v < 0 || v > 0xFFFF {
			return nil, fmt.Errorf("raw value %d out of range for zone %d", v, i)
		}
		f.Raw[i] = uint16(v)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return SCN{BaseSentence: s, Frame: f}, nil
}

// ParseFrame decodes one sentence line.
func ParseFrame(line string) (zone.Frame, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return zone.Frame{}, err
	}
	scn, ok := s.(SCN)
	if !ok {
		return zone.Frame{}, fmt.Errorf("unexpected sentence type %s", s.DataType())
	}
	return scn.Frame, nil
}

// FormatFrame encodes f as a checksummed sentence without line ending.
func FormatFrame(f zone.Frame) string {
	var b strings.Builder
	b.WriteString(frameTalker)
	b.WriteString(TypeSCN)
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(f.N))
	for _, v := range f.Values() {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	body := b.String()
	return "$" + body + "*" + nmea.Checksum(body)
}
