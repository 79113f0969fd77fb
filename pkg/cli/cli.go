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

package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/PulseWaveProject/pulsewave-core/internal/telemetry"
	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// ErrExit is returned by Pre and Post when a flag has been fully handled
// and the program should exit successfully.
var ErrExit = errors.New("exit requested")

type Flags struct {
	fs          *flag.FlagSet
	ECGPort     *string
	PPGPort     *string
	ECGBaud     *int
	PPGBaud     *int
	APIPort     *int
	Daemon      *bool
	Version     *bool
	WriteConfig *bool
	Debug       *bool
}

// SetupFlags defines the common flags on fs, or on the default command line
// set when fs is nil.
func SetupFlags(fs *flag.FlagSet) *Flags {
	if fs == nil {
		fs = flag.CommandLine
	}
	return &Flags{
		fs: fs,
		ECGPort: fs.String(
			"ecg-port",
			"",
			"serial device of the ECG channel, e.g. COM3 or /dev/ttyUSB0",
		),
		ECGBaud: fs.Int(
			"ecg-baud",
			0,
			"baud rate of the ECG channel (9600, 57600 or 115200)",
		),
		PPGPort: fs.String(
			"ppg-port",
			"",
			"serial device of the PPG channel",
		),
		PPGBaud: fs.Int(
			"ppg-baud",
			0,
			"baud rate of the PPG channel (9600, 57600 or 115200)",
		),
		APIPort: fs.Int(
			"api-port",
			0,
			"port of the local API",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"log to stderr as well as the log file",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		WriteConfig: fs.Bool(
			"write-config",
			false,
			"save the config with any flag overrides applied and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging for this run",
		),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles the flags that need no environment. It
// returns ErrExit after printing the version.
func (f *Flags) Pre(args []string, out io.Writer) error {
	if err := f.fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "PulseWave v%s\n", config.AppVersion)
		return ErrExit
	}
	return nil
}

// Post applies flag overrides to cfg. Overrides only last for this run
// unless -write-config is passed, in which case the config is saved and
// ErrExit returned.
func (f *Flags) Post(cfg *config.Instance) error {
	ecg := cfg.ECG()
	if f.isFlagPassed("ecg-port") {
		ecg.Path = *f.ECGPort
	}
	if f.isFlagPassed("ecg-baud") {
		ecg.Baud = *f.ECGBaud
	}
	if err := cfg.SetECG(ecg); err != nil {
		return fmt.Errorf("ecg channel: %w", err)
	}

	ppg := cfg.PPG()
	if f.isFlagPassed("ppg-port") {
		ppg.Path = *f.PPGPort
	}
	if f.isFlagPassed("ppg-baud") {
		ppg.Baud = *f.PPGBaud
	}
	if err := cfg.SetPPG(ppg); err != nil {
		return fmt.Errorf("ppg channel: %w", err)
	}

	if f.isFlagPassed("api-port") {
		if *f.APIPort < 1 || *f.APIPort > 65535 {
			return fmt.Errorf("invalid api port: %d", *f.APIPort)
		}
		cfg.SetAPIPort(*f.APIPort)
	}

	if *f.Debug {
		cfg.SetDebugLogging(true)
		helpers.SetDebugLogging(true)
	}

	if *f.WriteConfig {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		log.Info().Str("path", cfg.Path()).Msg("config written")
		return ErrExit
	}
	return nil
}

// Setup creates the app directories, starts logging, loads the user config
// from configDir and initialises error reporting.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	configDir string,
	logDir string,
	defaults config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(configDir, logDir); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	if err := helpers.InitLogging(logDir, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(configDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebugLogging(cfg.DebugLogging())

	return cfg, nil
}

// InitTelemetry starts opt-in error reporting for a session. Failure is
// logged and otherwise ignored.
func InitTelemetry(cfg *config.Instance, sessionID string) {
	err := telemetry.Init(
		cfg.ErrorReporting(),
		cfg.TelemetryDSN(),
		sessionID,
		config.AppVersion,
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}
}
