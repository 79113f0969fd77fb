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

package readers

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReadTimeout = 100 * time.Millisecond
	readBufferSize     = 1024
	// closeMargin is added to the read timeout when Stop waits for the read
	// loop to exit.
	closeMargin = 250 * time.Millisecond
)

var (
	ErrAlreadyOpen = errors.New("channel already open")
	ErrNoPath      = errors.New("no device path configured")
)

// SerialChannel owns one serial port and the goroutine reading from it.
// Every non-empty read is handed to the handler given to Start, on the read
// goroutine.
type SerialChannel struct {
	port        SerialPort
	PortFactory SerialPortFactory
	events      chan<- Event
	stop        chan struct{}
	done        chan struct{}
	device      config.Channel
	ReadTimeout time.Duration
	polling     bool
	mu          syncutil.RWMutex // protects port, events, stop, done, device, polling
}

// Start opens the device and starts the read loop. On any error the port is
// left closed and no goroutine is started.
func (c *SerialChannel) Start(device config.Channel, events chan<- Event, handle func([]byte)) error {
	if device.Path == "" {
		return ErrNoPath
	}
	if err := config.CheckBaud(device.Baud); err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		if _, err := os.Stat(device.Path); err != nil {
			return fmt.Errorf("failed to stat device path %s: %w", device.Path, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polling {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, c.device.ConnectionString())
	}

	factory := c.PortFactory
	if factory == nil {
		factory = DefaultSerialPortFactory
	}
	timeout := c.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	port, err := factory(device.Path, SerialMode(device.Baud))
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", device.Path, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		if cerr := port.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("failed to close serial port after setup error")
		}
		return fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	c.port = port
	c.device = device
	c.events = events
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.polling = true

	go c.loop(port, c.stop, c.done, handle)
	return nil
}

func (c *SerialChannel) loop(port SerialPort, stop, done chan struct{}, handle func([]byte)) {
	defer close(done)

	src := c.Device()
	log.Info().Str("device", src).Msg("serial channel opened")
	c.Emit(Event{Kind: EventChannelUp})

	buf := make([]byte, readBufferSize)
	for {
		n, err := port.Read(buf)
		select {
		case <-stop:
			log.Debug().Str("device", src).Msg("serial channel stopped")
			return
		default:
		}

		if err != nil {
			log.Error().Err(err).Str("device", src).Msg("failed to read from serial port")
			c.mu.Lock()
			c.polling = false
			c.mu.Unlock()
			if cerr := c.closePort(); cerr != nil {
				log.Warn().Err(cerr).Str("device", src).Msg("failed to close serial port")
			}
			c.Emit(Event{Kind: EventChannelDown, Err: err})
			return
		}

		if n > 0 {
			handle(buf[:n])
		}
	}
}

// Emit sends ev to the events channel given to Start, filling in Source.
// It gives up if the channel is stopped while the send is blocked.
func (c *SerialChannel) Emit(ev Event) {
	c.mu.RLock()
	events, stop := c.events, c.stop
	if ev.Source == "" {
		ev.Source = c.device.ConnectionString()
	}
	c.mu.RUnlock()

	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-stop:
	}
}

func (c *SerialChannel) closePort() error {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.mu.Unlock()

	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Stop ends the read loop and closes the port. It waits up to one read
// timeout plus a margin for the loop to exit. Calling Stop on a channel
// that is not running is a no-op.
func (c *SerialChannel) Stop() error {
	c.mu.Lock()
	c.polling = false
	stop, done := c.stop, c.done
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	timeout := c.ReadTimeout
	c.mu.Unlock()

	err := c.closePort()

	if done != nil {
		if timeout <= 0 {
			timeout = DefaultReadTimeout
		}
		t := time.NewTimer(timeout + closeMargin)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			log.Warn().Str("device", c.Device()).Msg("serial read loop did not exit in time")
		}
	}
	return err
}

func (c *SerialChannel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.polling && c.port != nil
}

func (c *SerialChannel) Device() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device.ConnectionString()
}

func (c *SerialChannel) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.device.Path
}
