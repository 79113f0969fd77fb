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

// Package ecgframe decodes the framed binary protocol spoken by the
// ADS1292R ECG/respiration board.
//
// A frame on the wire is:
//
//	0x0A 0xFA <len lo> <len hi> <type> <payload: len bytes> 0x0B
//
// Data packets (type 2) carry an 8 byte payload of four little-endian int16
// values: ECG amplitude, respiration amplitude, respiration rate and heart
// rate. Every other packet type is skipped by length.
//
// The decoder works one byte at a time and never blocks. Corrupt input is
// not an error: a frame with a bad stop byte is dropped and the decoder goes
// back to hunting for the sync bytes, so noise on the line only ever costs
// samples. The one condition reported distinctly is a frame that declares
// more payload than the decoder is willing to hold.
package ecgframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	Sync1 byte = 0x0A
	Sync2 byte = 0xFA
	Stop  byte = 0x0B

	// PacketTypeData tags packets carrying physiological samples.
	PacketTypeData byte = 2

	// Overhead is the number of bytes before the payload: two sync bytes,
	// two length bytes and the type byte.
	Overhead = 5

	// MaxPayload is the largest payload accepted, whatever the packet type.
	MaxPayload = 1000

	// SamplePayloadSize is the number of payload bytes a Sample is built from.
	SamplePayloadSize = 8

	posLengthMSB  = 3
	posPacketType = 4
)

// ErrOversizeFrame is returned by Write when a frame declares a payload larger
// than MaxPayload. The frame is aborted and decoding continues.
var ErrOversizeFrame = errors.New("oversize frame")

// State is the position of the decoder in the frame grammar.
type State uint8

const (
	StateInit State = iota
	StateSync1Seen
	StateSync2Seen
	StateHeader
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSync1Seen:
		return "sync1"
	case StateSync2Seen:
		return "sync2"
	case StateHeader:
		return "header"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is the outcome of feeding one byte to the decoder.
type Result uint8

const (
	// ResultNone means the byte was consumed without completing a frame.
	ResultNone Result = iota
	// ResultSample means a data frame completed and a Sample is available.
	ResultSample
	// ResultIgnored means a well formed non-data frame completed.
	ResultIgnored
	// ResultBadStop means the byte at the stop position was not Stop.
	ResultBadStop
	// ResultShortPayload means a data frame completed with fewer than
	// SamplePayloadSize payload bytes.
	ResultShortPayload
	// ResultOversize means a frame declared more than MaxPayload bytes.
	ResultOversize
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "none"
	case ResultSample:
		return "sample"
	case ResultIgnored:
		return "ignored"
	case ResultBadStop:
		return "bad_stop"
	case ResultShortPayload:
		return "short_payload"
	case ResultOversize:
		return "oversize"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Sample is one decoded data packet. All four fields come from the same
// payload.
type Sample struct {
	ECG             int16 `json:"ecg"`
	Respiration     int16 `json:"respiration"`
	RespirationRate int16 `json:"respiration_rate"`
	HeartRate       int16 `json:"heart_rate"`
}

// ParseSample decodes the first SamplePayloadSize bytes of a data payload.
func ParseSample(payload []byte) (Sample, error) {
	if len(payload) < SamplePayloadSize {
		return Sample{}, fmt.Errorf("payload too short: %d bytes", len(payload))
	}
	return Sample{
		ECG:             int16(binary.LittleEndian.Uint16(payload[0:2])),
		Respiration:     int16(binary.LittleEndian.Uint16(payload[2:4])),
		RespirationRate: int16(binary.LittleEndian.Uint16(payload[4:6])),
		HeartRate:       int16(binary.LittleEndian.Uint16(payload[6:8])),
	}, nil
}

// AppendFrame appends the wire encoding of a frame to dst.
func AppendFrame(dst []byte, packetType byte, payload []byte) []byte {
	dst = append(dst, Sync1, Sync2)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, packetType)
	dst = append(dst, payload...)
	return append(dst, Stop)
}

// EncodeSample returns the data frame carrying s.
func EncodeSample(s Sample) []byte {
	payload := make([]byte, 0, SamplePayloadSize)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(s.ECG))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(s.Respiration))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(s.RespirationRate))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(s.HeartRate))
	return AppendFrame(make([]byte, 0, Overhead+SamplePayloadSize+1), PacketTypeData, payload)
}

// Stats counts frame outcomes since the decoder was created.
type Stats struct {
	Samples      uint64 `json:"samples"`
	Ignored      uint64 `json:"ignored"`
	BadStop      uint64 `json:"bad_stop"`
	ShortPayload uint64 `json:"short_payload"`
	Oversize     uint64 `json:"oversize"`
	Rescans      uint64 `json:"rescans"`
}

// maxFrame is the longest frame whose raw bytes are kept for rescanning.
const maxFrame = Overhead + MaxPayload + 1

// Decoder is the frame state machine. It is not safe for concurrent use;
// each serial channel owns its own decoder.
type Decoder struct {
	payload     []byte
	raw         []byte // bytes of the current frame, starting at Sync1
	stats       Stats
	length      int
	pos         int
	state       State
	packetType  byte
	rawOverflow bool
}

func NewDecoder() *Decoder {
	return &Decoder{
		payload: make([]byte, 0, MaxPayload),
		raw:     make([]byte, 0, maxFrame),
	}
}

// State returns the current decoder state.
func (d *Decoder) State() State {
	return d.state
}

// Stats returns the outcome counters.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Reset drops any partial frame and returns to StateInit.
func (d *Decoder) Reset() {
	d.endFrame()
	d.raw = d.raw[:0]
	d.rawOverflow = false
}

// endFrame returns to StateInit but keeps the raw bytes of the frame that
// just ended so Write can rescan them.
func (d *Decoder) endFrame() {
	d.state = StateInit
	d.payload = d.payload[:0]
	d.length = 0
	d.pos = 0
	d.packetType = 0
}

func (d *Decoder) startFrame(b byte) {
	d.raw = append(d.raw[:0], b)
	d.rawOverflow = false
	d.state = StateSync1Seen
}

func (d *Decoder) record(b byte) {
	if len(d.raw) < maxFrame {
		d.raw = append(d.raw, b)
		return
	}
	d.rawOverflow = true
}

// Feed applies the transition table to one byte. The Sample is only valid
// when the result is ResultSample.
//
// Feed on its own never looks back: after a failed frame the bytes that
// belonged to it are gone. Write additionally rescans them.
func (d *Decoder) Feed(b byte) (Sample, Result) {
	switch d.state {
	case StateInit:
		if b == Sync1 {
			d.startFrame(b)
		}
	case StateSync1Seen:
		switch b {
		case Sync2:
			d.record(b)
			d.state = StateSync2Seen
		case Sync1:
			// 0x0A 0x0A 0xFA: the second byte starts the frame.
			d.startFrame(b)
		default:
			d.state = StateInit
		}
	case StateSync2Seen:
		d.record(b)
		d.length = int(b)
		d.pos = 2
		d.payload = d.payload[:0]
		d.state = StateHeader
	case StateHeader:
		d.record(b)
		return d.header(b)
	}
	return Sample{}, ResultNone
}

func (d *Decoder) header(b byte) (Sample, Result) {
	d.pos++
	switch {
	case d.pos == posLengthMSB:
		d.length |= int(b) << 8
		if d.length > MaxPayload {
			d.stats.Oversize++
			d.endFrame()
			return Sample{}, ResultOversize
		}
		return Sample{}, ResultNone
	case d.pos == posPacketType:
		d.packetType = b
		return Sample{}, ResultNone
	case d.pos < Overhead+d.length:
		if d.packetType == PacketTypeData {
			d.payload = append(d.payload, b)
		}
		return Sample{}, ResultNone
	}

	// Stop byte position.
	defer d.endFrame()
	if b != Stop {
		d.stats.BadStop++
		return Sample{}, ResultBadStop
	}
	if d.packetType != PacketTypeData {
		d.stats.Ignored++
		return Sample{}, ResultIgnored
	}
	s, err := ParseSample(d.payload)
	if err != nil {
		d.stats.ShortPayload++
		return Sample{}, ResultShortPayload
	}
	d.stats.Samples++
	return s, ResultSample
}

// Write feeds a chunk of bytes and appends every completed sample to dst.
// Chunk boundaries do not matter: a frame split across calls decodes the
// same as one delivered whole.
//
// The returned error wraps ErrOversizeFrame if any oversize frame was
// aborted in this chunk; the whole chunk is still consumed.
func (d *Decoder) Write(dst []Sample, p []byte) ([]Sample, error) {
	oversize := 0
	d.Decode(p, func(s Sample, res Result) {
		switch res {
		case ResultSample:
			dst = append(dst, s)
		case ResultOversize:
			oversize++
		case ResultNone, ResultIgnored, ResultBadStop, ResultShortPayload:
		}
	})
	if oversize > 0 {
		return dst, fmt.Errorf("%w: %d aborted", ErrOversizeFrame, oversize)
	}
	return dst, nil
}

// Decode feeds a chunk of bytes and calls fn with the outcome of every frame
// that ends in it, in wire order. ResultNone is never passed to fn.
//
// When a frame fails on its stop byte or its length, the bytes after its
// first sync byte are fed through again, so a truncated frame cannot take a
// following good frame down with it.
func (d *Decoder) Decode(p []byte, fn func(Sample, Result)) {
	for _, b := range p {
		s, res := d.Feed(b)
		if res == ResultNone {
			continue
		}
		fn(s, res)
		if res == ResultOversize || res == ResultBadStop {
			d.rescan(fn)
		}
	}
}

func (d *Decoder) rescan(fn func(Sample, Result)) {
	if d.rawOverflow || len(d.raw) < 2 {
		d.Reset()
		return
	}
	replay := make([]byte, len(d.raw)-1)
	copy(replay, d.raw[1:])
	d.Reset()
	d.stats.Rescans++
	d.Decode(replay, fn)
}
