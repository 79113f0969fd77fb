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

package testutils

import (
	"errors"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"go.bug.st/serial"
)

var ErrPortClosed = errors.New("port closed")

// MockSerialPort is an in-memory serial port. Data queued with Enqueue is
// returned by Read one chunk at a time; an empty queue behaves like a read
// timeout.
type MockSerialPort struct {
	ReadError   error
	CloseError  error
	TimeoutErr  error
	ReadFunc    func(p []byte) (n int, err error)
	Mode        *serial.Mode
	chunks      [][]byte
	ReadTimeout time.Duration
	Closed      bool
	mu          syncutil.RWMutex
}

func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{}
}

// Enqueue appends chunks to be returned by later reads. Each chunk is
// returned by its own Read call unless it does not fit the read buffer.
func (m *MockSerialPort) Enqueue(chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks = append(m.chunks, append([]byte(nil), c...))
	}
}

// Fail makes every following read return err.
func (m *MockSerialPort) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

// Pending returns the number of queued chunks not yet read.
func (m *MockSerialPort) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	if m.Closed {
		m.mu.Unlock()
		return 0, ErrPortClosed
	}
	readFunc := m.ReadFunc
	if readFunc != nil {
		m.mu.Unlock()
		return readFunc(p)
	}
	if len(m.chunks) > 0 {
		n = copy(p, m.chunks[0])
		if n < len(m.chunks[0]) {
			m.chunks[0] = m.chunks[0][n:]
		} else {
			m.chunks = m.chunks[1:]
		}
		m.mu.Unlock()
		return n, nil
	}
	readErr := m.ReadError
	m.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}

	// nothing queued: behave like a read timeout
	time.Sleep(10 * time.Millisecond)
	return 0, nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	m.Closed = true
	closeError := m.CloseError
	m.mu.Unlock()
	return closeError
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadTimeout = t
	return m.TimeoutErr
}

func (m *MockSerialPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}

// OpenedWith returns the mode passed to the factory, or nil if the port was
// never opened.
func (m *MockSerialPort) OpenedWith() *serial.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Mode
}

// Factory returns a SerialPortFactory that hands out m.
func (m *MockSerialPort) Factory() readers.SerialPortFactory {
	return func(_ string, mode *serial.Mode) (readers.SerialPort, error) {
		m.mu.Lock()
		m.Mode = mode
		m.mu.Unlock()
		return m, nil
	}
}

// FailingFactory returns a SerialPortFactory that always fails with err.
func FailingFactory(err error) readers.SerialPortFactory {
	return func(string, *serial.Mode) (readers.SerialPort, error) {
		return nil, err
	}
}
