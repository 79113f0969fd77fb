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
	"slices"
	"strings"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
)

var ErrInvalidDriver = errors.New("invalid driver id")

type EventKind string

const (
	// EventChannelUp is sent once the port is open and the read loop has
	// started.
	EventChannelUp EventKind = "channel.up"
	// EventChannelDown is sent when the read loop ends on a port error. It
	// is not sent for a requested Close.
	EventChannelDown EventKind = "channel.down"
	// EventOversize is sent when a run of oversize frames crosses the
	// reader's threshold.
	EventOversize EventKind = "frames.oversize"
)

type Event struct {
	Err    error
	Kind   EventKind
	Source string
	Count  uint64
}

type DriverMetadata struct {
	ID          string
	Description string
	Channel     string
}

type Reader interface {
	// Metadata returns static information about this driver.
	Metadata() DriverMetadata
	// IDs returns the driver names accepted by Open.
	IDs() []string
	// Open the serial port and start the read loop. Channel state changes
	// are sent to events.
	Open(config.Channel, chan<- Event) error
	// Close stops the read loop and closes the port.
	Close() error
	// Device returns the connection string of the open channel.
	Device() string
	// Connected returns true while the read loop is running.
	Connected() bool
	// Info returns the device path.
	Info() string
}

// NormalizeDriverID lowercases id and strips underscores, so "ecg_serial"
// and "ECGSerial" both match "ecgserial".
func NormalizeDriverID(id string) string {
	return strings.ReplaceAll(strings.ToLower(id), "_", "")
}

// CheckDriver returns ErrInvalidDriver unless driver names one of r's IDs.
func CheckDriver(r Reader, driver string) error {
	if !slices.Contains(r.IDs(), NormalizeDriverID(driver)) {
		return fmt.Errorf("%w: %q", ErrInvalidDriver, driver)
	}
	return nil
}
