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

package ecgserial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/protocol/ecgframe"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers/testutils"
	"github.com/PulseWaveProject/pulsewave-core/pkg/ring"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/samplequeue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"
)

const waitTimeout = 2 * time.Second

var scenarioFrame = []byte{
	0x0A, 0xFA, 0x08, 0x00, 0x02,
	0x64, 0x00, 0x32, 0x00, 0x0F, 0x00, 0x3C, 0x00,
	0x0B,
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	reader *Reader
	port   *testutils.MockSerialPort
	buf    *ring.Buffer[int16]
	queue  *samplequeue.Queue
	events chan readers.Event
	device config.Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		port:   testutils.NewMockSerialPort(),
		buf:    ring.NewBuffer[int16](8),
		queue:  samplequeue.New(16),
		events: testutils.CreateTestEventChannel(t),
		device: config.Channel{
			Driver: config.DriverECGSerial,
			Path:   testutils.CreateTempDevicePath(t),
			Baud:   57600,
		},
	}
	f.reader = NewReader(f.buf, f.queue,
		WithPortFactory(f.port.Factory()),
		WithReadTimeout(20*time.Millisecond),
	)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	require.NoError(t, f.reader.Open(f.device, f.events))
	t.Cleanup(func() {
		_ = f.reader.Close()
	})
	testutils.AssertEventReceived(t, f.events, readers.EventChannelUp, waitTimeout)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	r := &Reader{}
	md := r.Metadata()
	assert.Equal(t, "ecgserial", md.ID)
	assert.Equal(t, "ecg", md.Channel)
	assert.Equal(t, []string{"ecgserial"}, r.IDs())
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	openErr := errors.New("device busy")

	tests := []struct {
		wantIs  error
		mutate  func(f *fixture)
		name    string
		wantMsg string
	}{
		{
			name:   "wrong driver",
			mutate: func(f *fixture) { f.device.Driver = "ppgserial" },
			wantIs: readers.ErrInvalidDriver,
		},
		{
			name:   "no path",
			mutate: func(f *fixture) { f.device.Path = "" },
			wantIs: readers.ErrNoPath,
		},
		{
			name:   "bad baud",
			mutate: func(f *fixture) { f.device.Baud = 300 },
			wantIs: config.ErrInvalidBaud,
		},
		{
			name: "factory fails",
			mutate: func(f *fixture) {
				f.reader = NewReader(f.buf, f.queue, WithPortFactory(testutils.FailingFactory(openErr)))
			},
			wantIs: openErr,
		},
		{
			name:    "read timeout rejected",
			mutate:  func(f *fixture) { f.port.TimeoutErr = errors.New("unsupported") },
			wantMsg: "failed to set read timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			tt.mutate(f)
			err := f.reader.Open(f.device, f.events)
			require.Error(t, err)
			if tt.wantIs != nil {
				require.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.False(t, f.reader.Connected())
			testutils.AssertNoEvent(t, f.events, 30*time.Millisecond)
		})
	}
}

func TestOpen_MissingDevicePath(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("device path is not checked on windows")
	}

	f := newFixture(t)
	f.device.Path = filepath.Join(t.TempDir(), "missing")
	err := f.reader.Open(f.device, f.events)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_SerialSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.open(t)

	mode := f.port.OpenedWith()
	require.NotNil(t, mode)
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.True(t, f.reader.Connected())
	assert.Equal(t, "ecgserial:"+f.device.Path, f.reader.Device())
	assert.Equal(t, f.device.Path, f.reader.Info())

	err := f.reader.Open(f.device, f.events)
	assert.ErrorIs(t, err, readers.ErrAlreadyOpen)
}

func TestScenarioFrame(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// split mid-payload so the decoder has to carry state across reads
	f.port.Enqueue(scenarioFrame[:7], scenarioFrame[7:])
	f.open(t)

	e, err := waitEntry(t, f.queue)
	require.NoError(t, err)
	assert.Equal(t, samplequeue.Entry{ECG: 100, Respiration: 50, RespirationRate: 15, HeartRate: 60}, e)

	latest, ok := f.buf.Latest()
	require.True(t, ok)
	assert.Equal(t, int16(100), latest)
	assert.Equal(t, uint64(1), f.buf.Pushes())
	testutils.Eventually(t, func() bool { return f.reader.Stats().Samples == 1 }, waitTimeout, "stats")
}

func TestCorruptStopByte(t *testing.T) {
	t.Parallel()

	bad := append([]byte(nil), scenarioFrame...)
	bad[len(bad)-1] = 0x00

	f := newFixture(t)
	f.port.Enqueue(bad)
	f.open(t)

	testutils.Eventually(t, func() bool { return f.reader.Stats().BadStop == 1 }, waitTimeout, "bad stop")
	assert.Zero(t, f.queue.Len())
	assert.Zero(t, f.buf.Pushes())
	assert.Equal(t, uint64(0), f.reader.Stats().Samples)
}

func TestGarbageBetweenFrames(t *testing.T) {
	t.Parallel()

	stream := []byte{0x00, 0xFF, 0x0B}
	stream = append(stream, scenarioFrame...)
	stream = append(stream, 0x13, 0x37)
	stream = append(stream, ecgframe.AppendFrame(nil, ecgframe.PacketTypeData,
		ecgframe.EncodeSample(ecgframe.Sample{ECG: -5, HeartRate: 72}))...)

	f := newFixture(t)
	f.port.Enqueue(stream)
	f.open(t)

	first, err := waitEntry(t, f.queue)
	require.NoError(t, err)
	assert.Equal(t, int16(100), first.ECG)
	second, err := waitEntry(t, f.queue)
	require.NoError(t, err)
	assert.Equal(t, int16(-5), second.ECG)
	assert.Equal(t, int16(72), second.HeartRate)
	assert.Equal(t, []int16{0, 0, 0, 0, 0, 0, 100, -5}, f.buf.Snapshot())
}

func TestReadError_ChannelDown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.open(t)

	readErr := errors.New("device unplugged")
	f.port.Fail(readErr)

	ev := testutils.AssertEventReceived(t, f.events, readers.EventChannelDown, waitTimeout)
	require.ErrorIs(t, ev.Err, readErr)
	assert.Equal(t, "ecgserial:"+f.device.Path, ev.Source)
	testutils.Eventually(t, f.port.IsClosed, waitTimeout, "port closed")
	assert.False(t, f.reader.Connected())
}

func TestClose_NoChannelDown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.open(t)

	require.NoError(t, f.reader.Close())
	assert.True(t, f.port.IsClosed())
	assert.False(t, f.reader.Connected())
	testutils.AssertNoEvent(t, f.events, 50*time.Millisecond)

	// second close is a no-op
	require.NoError(t, f.reader.Close())
}

func TestOversizeRunRaisesEvent(t *testing.T) {
	t.Parallel()

	oversize := []byte{0x0A, 0xFA, 0xE9, 0x03, 0x02}

	f := newFixture(t)
	for range OversizeThreshold {
		f.port.Enqueue(oversize)
	}
	f.open(t)

	ev := testutils.AssertEventReceived(t, f.events, readers.EventOversize, waitTimeout)
	require.ErrorIs(t, ev.Err, ecgframe.ErrOversizeFrame)
	assert.Equal(t, uint64(OversizeThreshold), ev.Count)
	assert.True(t, f.reader.Connected(), "oversize frames do not take the channel down")
}

func TestOversizeRunResetByGoodFrame(t *testing.T) {
	t.Parallel()

	oversize := []byte{0x0A, 0xFA, 0xE9, 0x03, 0x02}

	f := newFixture(t)
	for range OversizeThreshold - 1 {
		f.port.Enqueue(oversize)
	}
	f.port.Enqueue(scenarioFrame, oversize)
	f.open(t)

	_, err := waitEntry(t, f.queue)
	require.NoError(t, err)
	testutils.Eventually(t, func() bool {
		return f.reader.Stats().Oversize == OversizeThreshold
	}, waitTimeout, "oversize count")
	testutils.AssertNoEvent(t, f.events, 50*time.Millisecond)
}

func TestOversizeRunResetByGoodFrame_SingleRead(t *testing.T) {
	t.Parallel()

	oversize := []byte{0x0A, 0xFA, 0xE9, 0x03, 0x02}
	var chunk []byte
	for range OversizeThreshold - 1 {
		chunk = append(chunk, oversize...)
	}
	chunk = append(chunk, scenarioFrame...)
	chunk = append(chunk, oversize...)

	f := newFixture(t)
	f.port.Enqueue(chunk)
	f.open(t)

	_, err := waitEntry(t, f.queue)
	require.NoError(t, err)
	testutils.Eventually(t, func() bool {
		return f.reader.Stats().Oversize == OversizeThreshold
	}, waitTimeout, "oversize count")
	testutils.AssertNoEvent(t, f.events, 50*time.Millisecond)
}

func TestOversizeRunSingleRead(t *testing.T) {
	t.Parallel()

	oversize := []byte{0x0A, 0xFA, 0xE9, 0x03, 0x02}
	var chunk []byte
	for range OversizeThreshold {
		chunk = append(chunk, oversize...)
	}

	f := newFixture(t)
	f.port.Enqueue(chunk)
	f.open(t)

	ev := testutils.AssertEventReceived(t, f.events, readers.EventOversize, waitTimeout)
	assert.Equal(t, uint64(OversizeThreshold), ev.Count)
}

func waitEntry(t *testing.T, q *samplequeue.Queue) (samplequeue.Entry, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	return q.Wait(ctx) //nolint:wrapcheck // test helper
}
