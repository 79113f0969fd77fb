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

package notifications

import (
	"encoding/json"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

// sendNotification never blocks: a full channel drops the notification.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		var err error
		params, err = json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("error marshalling notification params")
			return
		}
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func ChannelUp(ns chan<- models.Notification, payload models.ChannelEventParams) {
	sendNotification(ns, models.NotificationChannelUp, payload)
}

func ChannelDown(ns chan<- models.Notification, payload models.ChannelEventParams) {
	sendNotification(ns, models.NotificationChannelDown, payload)
}

func FramesOversize(ns chan<- models.Notification, payload models.ChannelEventParams) {
	sendNotification(ns, models.NotificationFramesOversize, payload)
}

func BuffersReset(ns chan<- models.Notification, payload models.ResetResponse) {
	sendNotification(ns, models.NotificationBuffersReset, payload)
}

func Frame(ns chan<- models.Notification, payload *models.FrameParams) {
	sendNotification(ns, models.NotificationFrame, payload)
}
