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

// Package display is the consumer side of the sample pipeline. A Poller
// wakes on a fixed interval, drains the sample queue, snapshots both
// buffers and hands the result to its renderers. Drawing is left to the
// renderers.
package display

import (
	"context"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/PulseWaveProject/pulsewave-core/pkg/ring"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/samplequeue"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 50 * time.Millisecond

type Vitals struct {
	Updated         time.Time
	HeartRate       int16
	RespirationRate int16
	Valid           bool
}

// Frame is one poll's view of the pipeline. Its slices are reused by the
// next poll; a renderer must copy anything it keeps past Render.
type Frame struct {
	Time time.Time
	// ECG and PPG are the full buffer windows, oldest first.
	ECG []int16
	PPG []float64
	// Entries are the ECG samples dequeued since the previous frame.
	Entries []samplequeue.Entry
	// NewPPG holds the PPG values pushed since the previous frame, up to
	// one buffer's worth.
	NewPPG  []float64
	Vitals  Vitals
	Seq     uint64
	Dropped uint64
}

type Renderer interface {
	Render(f *Frame)
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(f *Frame)

func (fn RendererFunc) Render(f *Frame) {
	fn(f)
}

type Poller struct {
	clock     clockwork.Clock
	ecg       *ring.Buffer[int16]
	ppg       *ring.Buffer[float64]
	queue     *samplequeue.Queue
	renderers []Renderer
	frame     Frame
	vitals    Vitals
	interval  time.Duration
	ppgMark   ring.Mark
	mu        syncutil.RWMutex // protects renderers, vitals
}

// NewPoller returns a poller over the given buffers and queue. Any of them
// may be nil. A nil clock uses the real clock; a non-positive interval
// uses DefaultInterval.
func NewPoller(
	ecg *ring.Buffer[int16],
	ppg *ring.Buffer[float64],
	queue *samplequeue.Queue,
	interval time.Duration,
	clock clockwork.Clock,
) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		clock:    clock,
		ecg:      ecg,
		ppg:      ppg,
		queue:    queue,
		interval: interval,
	}
	if ecg != nil {
		p.frame.ECG = make([]int16, ecg.Cap())
	}
	if ppg != nil {
		p.frame.PPG = make([]float64, ppg.Cap())
		p.ppgMark = ppg.Mark()
	}
	return p
}

func (p *Poller) AddRenderer(r Renderer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderers = append(p.renderers, r)
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Vitals returns the heart and respiration rate of the newest sample seen.
func (p *Poller) Vitals() Vitals {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vitals
}

// Run polls until ctx is done. It always returns nil.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", p.interval).Msg("display poller started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("display poller stopped")
			return nil
		case now := <-ticker.Chan():
			p.Poll(now)
		}
	}
}

// Poll runs a single poll at time now and returns the frame handed to the
// renderers.
func (p *Poller) Poll(now time.Time) *Frame {
	f := &p.frame
	f.Time = now
	f.Seq++

	f.Entries = f.Entries[:0]
	if p.queue != nil {
		f.Entries = p.queue.Drain(f.Entries, 0)
		f.Dropped = p.queue.Dropped()
	}
	if p.ecg != nil {
		p.ecg.SnapshotInto(f.ECG)
	}

	f.NewPPG = f.NewPPG[:0]
	if p.ppg != nil {
		_, mark := p.ppg.SnapshotMark(f.PPG)
		n := min(mark.Since(p.ppgMark), uint64(len(f.PPG)))
		p.ppgMark = mark
		f.NewPPG = append(f.NewPPG, f.PPG[len(f.PPG)-int(n):]...)
	}

	p.mu.Lock()
	if len(f.Entries) > 0 {
		last := f.Entries[len(f.Entries)-1]
		p.vitals = Vitals{
			Updated:         now,
			HeartRate:       last.HeartRate,
			RespirationRate: last.RespirationRate,
			Valid:           true,
		}
	}
	f.Vitals = p.vitals
	renderers := p.renderers
	p.mu.Unlock()

	for _, r := range renderers {
		r.Render(f)
	}
	return f
}

// Reset forgets the last vitals, for use after the buffers are cleared.
// Samples pushed after a buffer Reset are reported as new by the next Poll
// whatever the poller saw before.
func (p *Poller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vitals = Vitals{}
}
