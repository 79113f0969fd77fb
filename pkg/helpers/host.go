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
	"github.com/mackerelio/go-osstat/memory"
	"github.com/mackerelio/go-osstat/uptime"
	"github.com/rs/zerolog/log"
)

// HostStats is a best-effort view of the machine the service runs on.
// Fields that could not be read are left zero.
type HostStats struct {
	UptimeSeconds float64
	MemoryTotal   uint64
	MemoryUsed    uint64
}

func ReadHostStats() HostStats {
	var hs HostStats

	if up, err := uptime.Get(); err == nil {
		hs.UptimeSeconds = up.Seconds()
	} else {
		log.Debug().Err(err).Msg("failed to read system uptime")
	}

	if mem, err := memory.Get(); err == nil {
		hs.MemoryTotal = mem.Total
		hs.MemoryUsed = mem.Used
	} else {
		log.Debug().Err(err).Msg("failed to read memory stats")
	}

	return hs
}
