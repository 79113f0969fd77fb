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

// Package samplequeue hands decoded ECG samples from the serial reader to the
// display consumer.
//
// The queue is a buffered channel with a drop-oldest policy: Put never blocks
// the reader, and when the consumer falls behind the oldest pending entries
// are discarded and counted. Memory stays bounded by the capacity.
package samplequeue

import (
	"context"
	"sync/atomic"

	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/PulseWaveProject/pulsewave-core/pkg/protocol/ecgframe"
)

// DefaultCapacity holds about four seconds of samples at the board's 250 Hz
// output rate.
const DefaultCapacity = 1024

// Entry is the composite tuple enqueued for every decoded frame.
type Entry struct {
	ECG             int16 `json:"ecg"`
	Respiration     int16 `json:"respiration"`
	HeartRate       int16 `json:"heart_rate"`
	RespirationRate int16 `json:"respiration_rate"`
}

// FromSample converts a decoded frame into a queue entry.
func FromSample(s ecgframe.Sample) Entry {
	return Entry{
		ECG:             s.ECG,
		Respiration:     s.Respiration,
		HeartRate:       s.HeartRate,
		RespirationRate: s.RespirationRate,
	}
}

type Queue struct {
	ch      chan Entry
	done    chan struct{}
	dropped atomic.Uint64
	put     atomic.Uint64
	putMu   syncutil.Mutex // serializes the drop-and-retry in Put with Close
	closed  atomic.Bool
}

// New returns a queue holding at most capacity entries. A capacity below one
// is raised to one.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Entry, capacity),
		done: make(chan struct{}),
	}
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many entries were discarded to make room.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Enqueued returns how many entries were accepted by Put.
func (q *Queue) Enqueued() uint64 {
	return q.put.Load()
}

// Put enqueues e without blocking. If the queue is full the oldest entry is
// dropped. It reports false if the queue is closed.
func (q *Queue) Put(e Entry) bool {
	if q.closed.Load() {
		return false
	}

	q.putMu.Lock()
	defer q.putMu.Unlock()
	if q.closed.Load() {
		return false
	}
	for {
		select {
		case q.ch <- e:
			q.put.Add(1)
			return true
		default:
		}

		// Full: make room. The consumer may have drained it meanwhile, in
		// which case there is nothing to drop and the send is retried.
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// Next returns the oldest pending entry without blocking.
func (q *Queue) Next() (Entry, bool) {
	select {
	case e := <-q.ch:
		return e, true
	default:
		return Entry{}, false
	}
}

// Drain appends up to limit pending entries to dst in FIFO order. A limit of
// zero or less drains everything currently pending.
func (q *Queue) Drain(dst []Entry, limit int) []Entry {
	if limit <= 0 {
		limit = len(q.ch)
	}
	for range limit {
		e, ok := q.Next()
		if !ok {
			break
		}
		dst = append(dst, e)
	}
	return dst
}

// Wait blocks until an entry is available, the queue is closed or ctx is
// done.
func (q *Queue) Wait(ctx context.Context) (Entry, error) {
	select {
	case e := <-q.ch:
		return e, nil
	default:
	}

	select {
	case e := <-q.ch:
		return e, nil
	case <-q.done:
		return Entry{}, ErrClosed
	case <-ctx.Done():
		return Entry{}, ctx.Err() //nolint:wrapcheck // caller owns the context
	}
}

// Close stops accepting entries. Once it returns no Put succeeds. Pending
// entries can still be drained. It is safe to call more than once.
func (q *Queue) Close() {
	q.putMu.Lock()
	defer q.putMu.Unlock()
	if q.closed.CompareAndSwap(false, true) {
		close(q.done)
	}
}
