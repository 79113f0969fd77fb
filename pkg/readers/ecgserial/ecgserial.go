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

// Package ecgserial reads ECG board frames from a serial port into the
// shared ECG buffer and sample queue.
package ecgserial

import (
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/PulseWaveProject/pulsewave-core/pkg/protocol/ecgframe"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/ring"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/samplequeue"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// OversizeThreshold is the number of oversize frames in a row, with no good
// frame between them, that raises an EventOversize.
const OversizeThreshold = 3

type Option func(*Reader)

func WithPortFactory(f readers.SerialPortFactory) Option {
	return func(r *Reader) {
		r.ch.PortFactory = f
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(r *Reader) {
		r.ch.ReadTimeout = d
	}
}

type Reader struct {
	buf         *ring.Buffer[int16]
	queue       *samplequeue.Queue
	decoder     *ecgframe.Decoder
	badStopLog  *rate.Limiter
	oversizeLog *rate.Limiter
	ch          readers.SerialChannel
	stats       ecgframe.Stats
	oversizeRun uint64
	statsMu     syncutil.RWMutex // protects stats
}

// NewReader returns a reader that pushes the ECG field of every decoded
// sample to buf and the whole sample to queue. queue may be nil.
func NewReader(buf *ring.Buffer[int16], queue *samplequeue.Queue, opts ...Option) *Reader {
	r := &Reader{
		buf:         buf,
		queue:       queue,
		decoder:     ecgframe.NewDecoder(),
		badStopLog:  rate.NewLimiter(rate.Every(time.Second), 1),
		oversizeLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (*Reader) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:          config.DriverECGSerial,
		Description: "ADS1292R ECG board, framed binary protocol",
		Channel:     "ecg",
	}
}

func (*Reader) IDs() []string {
	return []string{config.DriverECGSerial}
}

func (r *Reader) Open(device config.Channel, events chan<- readers.Event) error {
	if err := readers.CheckDriver(r, device.Driver); err != nil {
		return err
	}
	if r.ch.Connected() {
		return readers.ErrAlreadyOpen
	}
	r.decoder.Reset()
	r.oversizeRun = 0
	return r.ch.Start(device, events, r.handle) //nolint:wrapcheck // already wrapped
}

// handle runs on the read goroutine.
func (r *Reader) handle(p []byte) {
	before := r.decoder.Stats()
	r.decoder.Decode(p, r.frame)

	after := r.decoder.Stats()
	r.statsMu.Lock()
	r.stats = after
	r.statsMu.Unlock()

	if n := after.BadStop - before.BadStop; n > 0 && r.badStopLog.Allow() {
		log.Warn().
			Str("device", r.ch.Device()).
			Uint64("frames", n).
			Uint64("total", after.BadStop).
			Msg("discarded ecg frames with bad stop byte")
	}
	if n := after.Oversize - before.Oversize; n > 0 && r.oversizeLog.Allow() {
		log.Warn().Err(ecgframe.ErrOversizeFrame).
			Str("device", r.ch.Device()).
			Uint64("frames", n).
			Uint64("total", after.Oversize).
			Msg("aborted oversize ecg frames")
	}
}

// frame handles one decoded frame. A good frame ends the oversize run.
func (r *Reader) frame(s ecgframe.Sample, res ecgframe.Result) {
	switch res {
	case ecgframe.ResultSample:
		r.oversizeRun = 0
		r.buf.Push(s.ECG)
		if r.queue != nil {
			r.queue.Put(samplequeue.FromSample(s))
		}
	case ecgframe.ResultOversize:
		r.oversizeRun++
		if r.oversizeRun >= OversizeThreshold {
			r.ch.Emit(readers.Event{
				Kind:  readers.EventOversize,
				Err:   ecgframe.ErrOversizeFrame,
				Count: r.oversizeRun,
			})
			r.oversizeRun = 0
		}
	case ecgframe.ResultNone, ecgframe.ResultIgnored, ecgframe.ResultBadStop, ecgframe.ResultShortPayload:
	}
}

// Stats returns the decoder counters as of the last read.
func (r *Reader) Stats() ecgframe.Stats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

func (r *Reader) Close() error {
	return r.ch.Stop() //nolint:wrapcheck // already wrapped
}

func (r *Reader) Device() string {
	return r.ch.Device()
}

func (r *Reader) Connected() bool {
	return r.ch.Connected()
}

func (r *Reader) Info() string {
	return r.ch.Path()
}

var _ readers.Reader = (*Reader)(nil)
