// PulseWave Core
// Copyright (c) 2026 The PulseWave Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of PulseWave Core.
//
// PulseWave Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PulseWave Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PulseWave Core.  If not, see <http://www.gnu.org/licenses/>.

// Package ppgline parses the PPG sensor's text protocol: one sample per
// newline terminated line, written as the letter S followed by a decimal
// number, e.g. "S512.75".
package ppgline

import (
	"math"
	"strconv"
	"strings"
)

// Marker is the first character of every sample line.
const Marker = 'S'

// MaxLineLength bounds a buffered line. Longer lines are discarded up to the
// next newline.
const MaxLineLength = 256

// ParseLine returns the sample carried by line. Lines that are empty, do not
// start with Marker, or whose remainder is not a finite decimal number yield
// false.
func ParseLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != Marker {
		return 0, false
	}

	num := line[1:]
	// ParseFloat also takes hex floats such as 0x1p4
	if strings.ContainsAny(num, "xX") {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Splitter reassembles lines from arbitrarily chunked bytes. It is not safe
// for concurrent use.
type Splitter struct {
	buf        []byte
	lines      uint64
	rejected   uint64
	overflowed bool
}

func NewSplitter() *Splitter {
	return &Splitter{buf: make([]byte, 0, MaxLineLength)}
}

// Write consumes p and appends the samples of every completed line to dst.
// Bytes after the last newline are kept for the next call.
func (s *Splitter) Write(dst []float64, p []byte) []float64 {
	for _, b := range p {
		if b == '\n' {
			if s.overflowed {
				s.overflowed = false
				s.buf = s.buf[:0]
				continue
			}
			s.lines++
			if v, ok := ParseLine(string(s.buf)); ok {
				dst = append(dst, v)
			} else {
				s.rejected++
			}
			s.buf = s.buf[:0]
			continue
		}

		if s.overflowed {
			continue
		}
		if len(s.buf) >= MaxLineLength {
			s.buf = s.buf[:0]
			s.overflowed = true
			s.rejected++
			continue
		}
		s.buf = append(s.buf, b)
	}
	return dst
}

// Pending returns the number of buffered bytes of the unfinished line.
func (s *Splitter) Pending() int {
	return len(s.buf)
}

// Lines returns the number of complete lines seen.
func (s *Splitter) Lines() uint64 {
	return s.lines
}

// Rejected returns the number of lines that did not produce a sample,
// including overlong ones.
func (s *Splitter) Rejected() uint64 {
	return s.rejected
}
