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
	"encoding/json"
	"errors"
)

var ErrUnknownChannel = errors.New("unknown channel")

const (
	NotificationChannelUp      = "channel.up"
	NotificationChannelDown    = "channel.down"
	NotificationFramesOversize = "frames.oversize"
	NotificationBuffersReset   = "buffers.reset"
	NotificationFrame          = "display.frame"
)

const (
	MethodPing = "ping"
	MethodPong = "pong"
)

type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type ChannelEventParams struct {
	Channel string `json:"channel"`
	Source  string `json:"source"`
	Error   string `json:"error,omitempty"`
	Count   uint64 `json:"count,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
