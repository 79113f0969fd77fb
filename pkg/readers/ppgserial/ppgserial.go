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

// Package ppgserial reads PPG sensor lines from a serial port into the
// shared PPG buffer.
package ppgserial

import (
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/PulseWaveProject/pulsewave-core/pkg/protocol/ppgline"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/ring"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

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

type Stats struct {
	Samples  uint64 `json:"samples"`
	Lines    uint64 `json:"lines"`
	Rejected uint64 `json:"rejected"`
}

type Reader struct {
	buf       *ring.Buffer[float64]
	splitter  *ppgline.Splitter
	rejectLog *rate.Limiter
	values    []float64
	ch        readers.SerialChannel
	stats     Stats
	statsMu   syncutil.RWMutex // protects stats
}

func NewReader(buf *ring.Buffer[float64], opts ...Option) *Reader {
	r := &Reader{
		buf:       buf,
		splitter:  ppgline.NewSplitter(),
		rejectLog: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (*Reader) Metadata() readers.DriverMetadata {
	return readers.DriverMetadata{
		ID:          config.DriverPPGSerial,
		Description: "PPG sensor, S<value> line protocol",
		Channel:     "ppg",
	}
}

func (*Reader) IDs() []string {
	return []string{config.DriverPPGSerial}
}

func (r *Reader) Open(device config.Channel, events chan<- readers.Event) error {
	if err := readers.CheckDriver(r, device.Driver); err != nil {
		return err
	}
	if r.ch.Connected() {
		return readers.ErrAlreadyOpen
	}
	r.splitter = ppgline.NewSplitter()
	r.statsMu.Lock()
	r.stats = Stats{}
	r.statsMu.Unlock()
	return r.ch.Start(device, events, r.handle) //nolint:wrapcheck // already wrapped
}

// handle runs on the read goroutine.
func (r *Reader) handle(p []byte) {
	rejected := r.splitter.Rejected()
	r.values = r.splitter.Write(r.values[:0], p)
	r.buf.PushAll(r.values)

	r.statsMu.Lock()
	r.stats.Samples += uint64(len(r.values))
	r.stats.Lines = r.splitter.Lines()
	r.stats.Rejected = r.splitter.Rejected()
	r.statsMu.Unlock()

	if n := r.splitter.Rejected() - rejected; n > 0 && r.rejectLog.Allow() {
		log.Debug().
			Str("device", r.ch.Device()).
			Uint64("lines", n).
			Msg("ignored ppg lines without a sample")
	}
}

func (r *Reader) Stats() Stats {
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
