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

package config

import (
	"errors"
	"fmt"
	"slices"
)

const (
	DriverECGSerial = "ecgserial"
	DriverPPGSerial = "ppgserial"
)

// BaudRates lists the line speeds the sensors can be configured for.
var BaudRates = []int{9600, 57600, 115200}

var ErrInvalidBaud = errors.New("invalid baud rate")

// Channel configures one serial link. An empty Path leaves the channel
// disabled.
type Channel struct {
	Driver string `toml:"driver" validate:"required"`
	Path   string `toml:"path,omitempty"`
	Baud   int    `toml:"baud" validate:"baud"`
}

func (ch Channel) ConnectionString() string {
	return fmt.Sprintf("%s:%s", ch.Driver, ch.Path)
}

func (ch Channel) Enabled() bool {
	return ch.Path != ""
}

// CheckBaud returns ErrInvalidBaud unless baud is one of BaudRates.
func CheckBaud(baud int) error {
	if !slices.Contains(BaudRates, baud) {
		return fmt.Errorf("%w: %d (want one of %v)", ErrInvalidBaud, baud, BaudRates)
	}
	return nil
}

func (c *Instance) ECG() Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ECG
}

func (c *Instance) PPG() Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.PPG
}

// SetECG replaces the ECG channel settings after checking the baud rate.
func (c *Instance) SetECG(ch Channel) error {
	if err := CheckBaud(ch.Baud); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.ECG = ch
	return nil
}

// SetPPG replaces the PPG channel settings after checking the baud rate.
func (c *Instance) SetPPG(ch Channel) error {
	if err := CheckBaud(ch.Baud); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.PPG = ch
	return nil
}
