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

package helpers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/rs/zerolog/log"
)

// IsServiceRunning reports whether another instance is answering on the
// configured API port. Two instances would fight over the serial ports.
func IsServiceRunning(ctx context.Context, cfg *config.Instance) bool {
	if !cfg.APIEnabled() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/status", cfg.APIPort())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("error checking if service running")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
