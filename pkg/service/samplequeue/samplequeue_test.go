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

package samplequeue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/protocol/ecgframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFromSample_FieldMapping(t *testing.T) {
	t.Parallel()

	e := FromSample(ecgframe.Sample{ECG: 100, Respiration: 50, RespirationRate: 15, HeartRate: 60})

	assert.Equal(t, Entry{ECG: 100, Respiration: 50, HeartRate: 60, RespirationRate: 15}, e)
}

func TestPutNext_FIFO(t *testing.T) {
	t.Parallel()

	q := New(4)
	for i := range 3 {
		require.True(t, q.Put(Entry{ECG: int16(i)}))
	}

	assert.Equal(t, 3, q.Len())
	for i := range 3 {
		e, ok := q.Next()
		require.True(t, ok)
		assert.Equal(t, int16(i), e.ECG)
	}

	_, ok := q.Next()
	assert.False(t, ok)
}

func TestPut_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	q := New(3)
	for i := range 5 {
		q.Put(Entry{ECG: int16(i)})
	}

	got := q.Drain(nil, 0)

	assert.Equal(t, []Entry{{ECG: 2}, {ECG: 3}, {ECG: 4}}, got)
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, uint64(5), q.Enqueued())
}

func TestDrain_Limit(t *testing.T) {
	t.Parallel()

	q := New(8)
	for i := range 5 {
		q.Put(Entry{HeartRate: int16(60 + i)})
	}

	got := q.Drain(nil, 2)

	assert.Equal(t, []Entry{{HeartRate: 60}, {HeartRate: 61}}, got)
	assert.Equal(t, 3, q.Len())
}

func TestNew_MinimumCapacity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, New(0).Cap())
	assert.Equal(t, 1, New(-5).Cap())
}

func TestClose(t *testing.T) {
	t.Parallel()

	q := New(2)
	q.Put(Entry{ECG: 1})
	q.Close()
	q.Close()

	assert.False(t, q.Put(Entry{ECG: 2}))

	e, ok := q.Next()
	require.True(t, ok, "pending entries survive close")
	assert.Equal(t, int16(1), e.ECG)

	_, err := q.Wait(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestWait(t *testing.T) {
	t.Parallel()

	q := New(2)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put(Entry{HeartRate: 72})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	e, err := q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int16(72), e.HeartRate)
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(2).Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// One producer and one consumer running flat out: every entry is either
// received or counted as dropped, and received entries stay in order.
func TestPut_ConcurrentConsumer(t *testing.T) {
	defer goleak.VerifyNone(t)

	const total = 20000
	q := New(16)

	var (
		wg       sync.WaitGroup
		received []int16
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx := context.Background()
		for {
			e, err := q.Wait(ctx)
			if err != nil {
				return
			}
			received = append(received, e.ECG)
		}
	}()

	for i := range total {
		q.Put(Entry{ECG: int16(i)})
	}
	q.Close()
	wg.Wait()

	assert.Equal(t, uint64(total), q.Enqueued())
	assert.Equal(t, uint64(total), uint64(len(received))+q.Dropped())
	for i := 1; i < len(received); i++ {
		require.Less(t, received[i-1], received[i])
	}
}

func TestClose_ConcurrentPut(t *testing.T) {
	t.Parallel()

	q := New(4)
	var wg sync.WaitGroup
	started := make(chan struct{}, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			for q.Put(Entry{HeartRate: 60}) {
			}
		}()
	}
	for range 8 {
		<-started
	}

	q.Close()
	accepted := q.Enqueued()
	wg.Wait()

	assert.Equal(t, accepted, q.Enqueued(), "no entry accepted after Close returned")
	assert.False(t, q.Put(Entry{}))
}
