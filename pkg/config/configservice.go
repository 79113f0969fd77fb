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
	"time"

	"github.com/rs/zerolog/log"
)

type Buffer struct {
	Capacity      int `toml:"capacity" validate:"min=1,max=100000"`
	QueueCapacity int `toml:"queue_capacity" validate:"min=1,max=1000000"`
}

// Timing values are Go duration strings, e.g. "100ms".
type Timing struct {
	ReadTimeout  string `toml:"read_timeout" validate:"required,duration"`
	PollInterval string `toml:"poll_interval" validate:"required,duration"`
}

type API struct {
	// AllowedIPs holds addresses or CIDRs allowed to reach the API. Empty
	// allows everyone.
	AllowedIPs []string `toml:"allowed_ips,omitempty"`
	Port       int      `toml:"port" validate:"min=1,max=65535"`
	Enabled    bool     `toml:"enabled"`
}

// Discovery advertises the API over mDNS. Only used while the API runs.
type Discovery struct {
	InstanceName string `toml:"instance_name,omitempty"`
	Enabled      bool   `toml:"enabled"`
}

// MQTT forwards notifications to a broker when Broker is set. An empty
// Filter forwards every notification method.
type MQTT struct {
	Broker string   `toml:"broker,omitempty" validate:"omitempty,hostname_port"`
	Topic  string   `toml:"topic" validate:"required_with=Broker"`
	Filter []string `toml:"filter,omitempty"`
}

type Telemetry struct {
	DSN            string `toml:"dsn,omitempty" validate:"omitempty,url"`
	ErrorReporting bool   `toml:"error_reporting"`
}

func (c *Instance) BufferCapacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Buffer.Capacity
}

func (c *Instance) QueueCapacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Buffer.QueueCapacity
}

func (c *Instance) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Timing.ReadTimeout, c.defaults.Timing.ReadTimeout, 100*time.Millisecond)
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Timing.PollInterval, c.defaults.Timing.PollInterval, 50*time.Millisecond)
}

func (c *Instance) APIEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.Enabled
}

func (c *Instance) APIPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.API.Port
}

func (c *Instance) APIAllowedIPs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.vals.API.AllowedIPs...)
}

func (c *Instance) SetAPIPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.API.Port = port
}

func (c *Instance) SetAPIEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.API.Enabled = enabled
}

func (c *Instance) DiscoveryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Discovery.Enabled
}

func (c *Instance) DiscoveryInstanceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Discovery.InstanceName
}

func (c *Instance) MQTTBroker() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.Broker
}

func (c *Instance) MQTTTopic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.MQTT.Topic
}

func (c *Instance) MQTTFilter() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.vals.MQTT.Filter...)
}

func (c *Instance) ErrorReporting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Telemetry.ErrorReporting && c.vals.Telemetry.DSN != ""
}

func (c *Instance) TelemetryDSN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Telemetry.DSN
}

// parseDuration falls back to the default string, then to fallback. Values
// are validated on load so the fallbacks only matter for hand-built configs.
func parseDuration(val, def string, fallback time.Duration) time.Duration {
	for _, s := range []string{val, def} {
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err == nil && d > 0 {
			return d
		}
		log.Warn().Str("value", s).Msg("invalid duration in config")
	}
	return fallback
}
