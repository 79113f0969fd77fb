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
	"os"
	"path/filepath"

	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "PULSEWAVE_CFG"
)

type Values struct {
	ECG          Channel   `toml:"ecg"`
	PPG          Channel   `toml:"ppg"`
	Buffer       Buffer    `toml:"buffer"`
	Timing       Timing    `toml:"timing"`
	Telemetry    Telemetry `toml:"telemetry"`
	API          API       `toml:"api"`
	Discovery    Discovery `toml:"discovery"`
	MQTT         MQTT      `toml:"mqtt"`
	ConfigSchema int       `toml:"config_schema"`
	DebugLogging bool      `toml:"debug_logging"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	ECG: Channel{
		Driver: DriverECGSerial,
		Baud:   57600,
	},
	PPG: Channel{
		Driver: DriverPPGSerial,
		Baud:   115200,
	},
	Buffer: Buffer{
		Capacity:      500,
		QueueCapacity: 1024,
	},
	Timing: Timing{
		ReadTimeout:  "100ms",
		PollInterval: "50ms",
	},
	API: API{
		Enabled: true,
		Port:    7580,
	},
	Discovery: Discovery{
		Enabled: true,
	},
	MQTT: MQTT{
		Topic: "pulsewave",
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file from configDir, or from the path in
// CfgEnv when set. A file holding defaults is written if none exists.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewInMemory returns a config that is never read from or written to disk.
//
//nolint:gocritic // config struct copied for immutability
func NewInMemory(vals Values) (*Instance, error) {
	if err := vals.Validate(); err != nil {
		return nil, err
	}
	return &Instance{vals: vals, defaults: vals}, nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newVals, err := readValues(c.cfgPath, c.defaults)
	if err != nil {
		return err
	}
	c.vals = newVals
	return nil
}

// readValues parses and validates the file at path. Fields missing from the
// file keep their value from defaults.
//
//nolint:gocritic // config struct copied for immutability
func readValues(path string, defaults Values) (Values, error) {
	if path == "" {
		return Values{}, errors.New("config path not set")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("failed to read config file: %w", err)
	}

	newVals := defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return Values{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return Values{}, errors.New("schema version mismatch")
	}

	if err := newVals.Validate(); err != nil {
		return Values{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return newVals, nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Values returns a copy of the current values.
func (c *Instance) Values() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}
