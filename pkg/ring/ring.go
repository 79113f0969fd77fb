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

// Package ring implements the fixed-capacity rolling sample buffer kept for
// each sensor channel.
//
// A Buffer always holds exactly Cap() values: it starts zero filled and every
// Push overwrites the oldest value. Snapshot returns the values in arrival
// order, oldest first. One reader goroutine writes a buffer while the display
// consumer takes snapshots, so both sides go through the buffer's lock and a
// snapshot never observes a half applied push.
package ring

import (
	"fmt"

	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
)

// DefaultCapacity is the number of samples kept per channel.
const DefaultCapacity = 500

type Buffer[T any] struct {
	data   []T
	cursor int
	pushes uint64
	resets uint64
	mu     syncutil.RWMutex // protects data, cursor, pushes, resets
}

// Mark is a position in a buffer's history.
type Mark struct {
	Pushes uint64
	Resets uint64
}

// Since returns the number of values pushed between prev and m. Only pushes
// after the latest Reset count when the buffer was reset in between.
func (m Mark) Since(prev Mark) uint64 {
	if m.Resets != prev.Resets || m.Pushes < prev.Pushes {
		return m.Pushes
	}
	return m.Pushes - prev.Pushes
}

// NewBuffer returns a zero filled buffer holding n values. It panics if n is
// not positive.
func NewBuffer[T any](n int) *Buffer[T] {
	if n <= 0 {
		panic(fmt.Sprintf("ring: invalid capacity %d", n))
	}
	return &Buffer[T]{data: make([]T, n)}
}

// Cap returns the fixed number of values held by the buffer.
func (r *Buffer[T]) Cap() int {
	return len(r.data)
}

// Cursor returns the index the next Push will write to.
func (r *Buffer[T]) Cursor() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cursor
}

// Pushes returns the total number of values pushed since creation or the
// last Reset.
func (r *Buffer[T]) Pushes() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pushes
}

// Push writes v over the oldest value and advances the cursor.
func (r *Buffer[T]) Push(v T) {
	r.mu.Lock()
	r.data[r.cursor] = v
	r.cursor = (r.cursor + 1) % len(r.data)
	r.pushes++
	r.mu.Unlock()
}

// PushAll pushes vs in order under a single lock acquisition.
func (r *Buffer[T]) PushAll(vs []T) {
	if len(vs) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes += uint64(len(vs))
	if len(vs) >= len(r.data) {
		// Only the tail survives, and it ends right before the new cursor.
		r.cursor = (r.cursor + len(vs)) % len(r.data)
		tail := vs[len(vs)-len(r.data):]
		n := copy(r.data[r.cursor:], tail)
		copy(r.data, tail[n:])
		return
	}
	n := copy(r.data[r.cursor:], vs)
	copy(r.data, vs[n:])
	r.cursor = (r.cursor + len(vs)) % len(r.data)
}

// Latest returns the most recently pushed value, or the zero value if nothing
// has been pushed.
func (r *Buffer[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pushes == 0 {
		var zero T
		return zero, false
	}
	return r.data[(r.cursor+len(r.data)-1)%len(r.data)], true
}

// Snapshot returns a copy of the buffer rotated by the cursor so index 0 is
// the oldest value and index Cap()-1 the newest.
func (r *Buffer[T]) Snapshot() []T {
	dst := make([]T, len(r.data))
	r.SnapshotInto(dst)
	return dst
}

// SnapshotInto copies the ordered values into dst and returns the number of
// values copied. If dst is shorter than Cap() only the newest len(dst) values
// are copied.
func (r *Buffer[T]) SnapshotInto(dst []T) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(dst)
}

// SnapshotPushes is SnapshotInto that also returns the push count the copy
// corresponds to.
func (r *Buffer[T]) SnapshotPushes(dst []T) (n int, pushes uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(dst), r.pushes
}

// Mark returns the current position in the buffer's history.
func (r *Buffer[T]) Mark() Mark {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Mark{Pushes: r.pushes, Resets: r.resets}
}

// SnapshotMark is SnapshotInto that also returns the Mark the copy
// corresponds to.
func (r *Buffer[T]) SnapshotMark(dst []T) (int, Mark) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(dst), Mark{Pushes: r.pushes, Resets: r.resets}
}

func (r *Buffer[T]) snapshotLocked(dst []T) int {
	size := len(r.data)
	want := min(len(dst), size)
	start := (r.cursor + size - want) % size
	n := copy(dst[:want], r.data[start:])
	if n < want {
		n += copy(dst[n:want], r.data[:r.cursor])
	}
	return n
}

// Reset zeroes every value and moves the cursor back to the start.
func (r *Buffer[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.data)
	r.cursor = 0
	r.pushes = 0
	r.resets++
}
