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

package models

import (
	"time"

	"github.com/google/uuid"
)

type ChannelStatus struct {
	Stats     any    `json:"stats"`
	ID        string `json:"id"`
	Driver    string `json:"driver"`
	Path      string `json:"path"`
	Baud      int    `json:"baud"`
	Connected bool   `json:"connected"`
}

type QueueStatus struct {
	Capacity int    `json:"capacity"`
	Pending  int    `json:"pending"`
	Enqueued uint64 `json:"enqueued"`
	Dropped  uint64 `json:"dropped"`
}

type HostStatus struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`
	MemoryTotal   uint64  `json:"memoryTotal"`
	MemoryUsed    uint64  `json:"memoryUsed"`
}

type StatusResponse struct {
	Started  time.Time                `json:"started"`
	Channels map[string]ChannelStatus `json:"channels"`
	Host     *HostStatus              `json:"host,omitempty"`
	Version  string                   `json:"version"`
	Queue    QueueStatus              `json:"queue"`
	Session  uuid.UUID                `json:"session"`
}

type SnapshotResponse[T any] struct {
	Channel string `json:"channel"`
	Samples []T    `json:"samples"`
	Pushes  uint64 `json:"pushes"`
}

type VitalsResponse struct {
	Updated         *time.Time `json:"updated,omitempty"`
	HeartRate       int16      `json:"heartRate"`
	RespirationRate int16      `json:"respirationRate"`
	Valid           bool       `json:"valid"`
}

// FrameParams is the payload of a display.frame notification: the samples
// that arrived since the previous frame.
type FrameParams struct {
	Time    time.Time      `json:"time"`
	ECG     []int16        `json:"ecg"`
	PPG     []float64      `json:"ppg"`
	Vitals  VitalsResponse `json:"vitals"`
	Dropped uint64         `json:"dropped"`
}

type ResetResponse struct {
	Reset []string `json:"reset"`
}
