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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, CfgFile), []byte(body), 0o600)
	require.NoError(t, err)
	return dir
}

func TestNewConfig_WritesDefaults(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, CfgFile))
	assert.Equal(t, filepath.Join(dir, CfgFile), cfg.Path())
	assert.Equal(t, BaseDefaults, cfg.Values())

	// reloading the written file gives the same values
	require.NoError(t, cfg.Load())
	assert.Equal(t, BaseDefaults, cfg.Values())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, `config_schema = 1

[ecg]
path = "/dev/ttyUSB0"
baud = 9600
`)
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	ecg := cfg.ECG()
	assert.Equal(t, "/dev/ttyUSB0", ecg.Path)
	assert.Equal(t, 9600, ecg.Baud)
	assert.Equal(t, DriverECGSerial, ecg.Driver)
	assert.True(t, ecg.Enabled())
	assert.False(t, cfg.PPG().Enabled())
	assert.Equal(t, 500, cfg.BufferCapacity())
	assert.Equal(t, 1024, cfg.QueueCapacity())
	assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval())
}

func TestLoad_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantIs  error
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "unsupported baud",
			body:    "config_schema = 1\n[ppg]\nbaud = 4800\n",
			wantIs:  ErrInvalidBaud,
			wantMsg: "PPG.Baud",
		},
		{
			name:    "bad duration",
			body:    "config_schema = 1\n[timing]\npoll_interval = \"soon\"\n",
			wantMsg: "Timing.PollInterval",
		},
		{
			name:    "negative duration",
			body:    "config_schema = 1\n[timing]\nread_timeout = \"-5ms\"\n",
			wantMsg: "Timing.ReadTimeout",
		},
		{
			name:    "zero capacity",
			body:    "config_schema = 1\n[buffer]\ncapacity = 0\n",
			wantMsg: "Buffer.Capacity",
		},
		{
			name:    "mqtt broker without port",
			body:    "config_schema = 1\n[mqtt]\nbroker = \"localhost\"\n",
			wantMsg: "MQTT.Broker",
		},
		{
			name:    "mqtt broker without topic",
			body:    "config_schema = 1\n[mqtt]\nbroker = \"localhost:1883\"\ntopic = \"\"\n",
			wantMsg: "MQTT.Topic",
		},
		{
			name:    "schema mismatch",
			body:    "config_schema = 99\n",
			wantMsg: "schema version mismatch",
		},
		{
			name:    "malformed toml",
			body:    "config_schema = [\n",
			wantMsg: "unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfig(writeConfig(t, tt.body), BaseDefaults)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestCheckBaud(t *testing.T) {
	t.Parallel()

	for _, b := range BaudRates {
		require.NoError(t, CheckBaud(b))
	}
	for _, b := range []int{0, -1, 4800, 230400} {
		assert.ErrorIs(t, CheckBaud(b), ErrInvalidBaud)
	}
}

func TestSetChannel(t *testing.T) {
	t.Parallel()

	cfg, err := NewInMemory(BaseDefaults)
	require.NoError(t, err)

	err = cfg.SetECG(Channel{Driver: DriverECGSerial, Path: "COM3", Baud: 1200})
	require.ErrorIs(t, err, ErrInvalidBaud)
	assert.Empty(t, cfg.ECG().Path)

	require.NoError(t, cfg.SetPPG(Channel{Driver: DriverPPGSerial, Path: "COM4", Baud: 9600}))
	assert.Equal(t, "ppgserial:COM4", cfg.PPG().ConnectionString())
}

func TestNewInMemory(t *testing.T) {
	t.Parallel()

	cfg, err := NewInMemory(BaseDefaults)
	require.NoError(t, err)
	assert.Error(t, cfg.Save(), "in-memory config has no path")

	bad := BaseDefaults
	bad.ECG.Driver = ""
	_, err = NewInMemory(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ECG.Driver is required")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)

	cfg.SetAPIPort(9000)
	cfg.SetDebugLogging(true)
	require.NoError(t, cfg.Save())

	again, err := NewConfig(dir, BaseDefaults)
	require.NoError(t, err)
	assert.Equal(t, 9000, again.APIPort())
	assert.True(t, again.DebugLogging())
}

func TestErrorReportingNeedsDSN(t *testing.T) {
	t.Parallel()

	vals := BaseDefaults
	vals.Telemetry.ErrorReporting = true
	cfg, err := NewInMemory(vals)
	require.NoError(t, err)
	assert.False(t, cfg.ErrorReporting())

	vals.Telemetry.DSN = "https://key@sentry.example.com/1"
	cfg, err = NewInMemory(vals)
	require.NoError(t, err)
	assert.True(t, cfg.ErrorReporting())
	assert.Equal(t, vals.Telemetry.DSN, cfg.TelemetryDSN())
}

func TestParseDurationFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20*time.Millisecond, parseDuration("20ms", "1s", time.Hour))
	assert.Equal(t, time.Second, parseDuration("", "1s", time.Hour))
	assert.Equal(t, time.Hour, parseDuration("nope", "", time.Hour))
}

// Accessors take the read lock; this fails under -tags=deadlock if any of
// them re-enter it.
func TestAccessors_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cfg, err := NewInMemory(BaseDefaults)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = cfg.ECG()
				_ = cfg.ReadTimeout()
				_ = cfg.APIPort()
				cfg.SetAPIEnabled(i%2 == 0)
			}
		}()
	}
	wg.Wait()
}

func TestPublisherSettings(t *testing.T) {
	t.Parallel()

	body := "config_schema = 1\n" +
		"[mqtt]\nbroker = \"10.0.0.2:1883\"\nfilter = [\"display.frame\"]\n" +
		"[discovery]\nenabled = false\ninstance_name = \"bedside\"\n"
	cfg, err := NewConfig(writeConfig(t, body), BaseDefaults)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2:1883", cfg.MQTTBroker())
	assert.Equal(t, "pulsewave", cfg.MQTTTopic(), "topic keeps its default")
	assert.Equal(t, []string{"display.frame"}, cfg.MQTTFilter())
	assert.False(t, cfg.DiscoveryEnabled())
	assert.Equal(t, "bedside", cfg.DiscoveryInstanceName())
}
