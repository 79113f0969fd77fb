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

package display

import (
	"github.com/rs/zerolog"
)

// LogRenderer logs the heart and respiration rate whenever either changes.
type LogRenderer struct {
	logger zerolog.Logger
	last   Vitals
}

func NewLogRenderer(logger zerolog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Render(f *Frame) {
	v := f.Vitals
	if !v.Valid {
		return
	}
	if r.last.Valid && v.HeartRate == r.last.HeartRate && v.RespirationRate == r.last.RespirationRate {
		return
	}
	r.last = v
	r.logger.Info().
		Int16("heart_rate", v.HeartRate).
		Int16("respiration_rate", v.RespirationRate).
		Uint64("dropped", f.Dropped).
		Msgf("Heart Rate: %d bpm", v.HeartRate)
}
