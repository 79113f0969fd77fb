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

package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/gocarina/gocsv"
)

// snapshotRow is one CSV line of a snapshot export. Index 0 is the oldest
// sample in the window.
type snapshotRow struct {
	Index int     `csv:"index"`
	Value float64 `csv:"value"`
}

func snapshotRows(snap any) ([]*snapshotRow, error) {
	switch s := snap.(type) {
	case models.SnapshotResponse[int16]:
		rows := make([]*snapshotRow, len(s.Samples))
		for i, v := range s.Samples {
			rows[i] = &snapshotRow{Index: i, Value: float64(v)}
		}
		return rows, nil
	case models.SnapshotResponse[float64]:
		rows := make([]*snapshotRow, len(s.Samples))
		for i, v := range s.Samples {
			rows[i] = &snapshotRow{Index: i, Value: v}
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("unsupported snapshot type %T", snap)
	}
}

func writeCSV(w http.ResponseWriter, channel string, snap any) error {
	rows, err := snapshotRows(snap)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", channel+".csv"))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())
	return err
}
