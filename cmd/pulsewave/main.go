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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/PulseWaveProject/pulsewave-core/internal/telemetry"
	"github.com/PulseWaveProject/pulsewave-core/pkg/cli"
	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(nil)
	if err := flags.Pre(os.Args[1:], os.Stdout); errors.Is(err, cli.ErrExit) {
		return nil
	} else if err != nil {
		return err
	}

	var logWriters []io.Writer
	if *flags.Daemon {
		logWriters = []io.Writer{os.Stderr}
	}

	cfg, err := cli.Setup(config.ConfigDir(), config.LogDir(), config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}

	if err := flags.Post(cfg); errors.Is(err, cli.ErrExit) {
		return nil
	} else if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.APIEnabled() && helpers.IsServiceRunning(ctx, cfg) {
		return fmt.Errorf("service already running on port %d", cfg.APIPort())
	}

	sessionID := uuid.New()
	cli.InitTelemetry(cfg, sessionID.String())
	defer telemetry.Close()

	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			telemetry.Flush()
			log.Fatal().Msgf("panic: %v", r)
		}
	}()

	svc, err := service.Start(cfg, service.Options{SessionID: sessionID})
	if err != nil {
		log.Error().Err(err).Msg("error starting service")
		return fmt.Errorf("error starting service: %w", err)
	}

	if !*flags.Daemon {
		_, _ = fmt.Printf("PulseWave v%s running, press Ctrl+C to stop\n", config.AppVersion)
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	if err := svc.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping service")
		return fmt.Errorf("error stopping service: %w", err)
	}
	return nil
}
