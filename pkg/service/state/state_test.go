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

package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	st, _ := NewState(id)

	assert.Equal(t, id, st.SessionID())
	assert.False(t, st.Started().IsZero())
	assert.Empty(t, st.Channels())
	assert.False(t, st.ShouldStopService())

	st.StopService()
	assert.True(t, st.ShouldStopService())
	assert.ErrorIs(t, st.Context().Err(), context.Canceled)
}

func TestChannelLifecycle(t *testing.T) {
	t.Parallel()

	st, ns := NewState(uuid.New())

	st.RegisterChannel("ecg", "ecgserial:/dev/ttyUSB0")
	ch, ok := st.Channel("ecg")
	require.True(t, ok)
	assert.False(t, ch.Connected)

	st.SetChannelUp("ecg", "ecgserial:/dev/ttyUSB0")
	n := <-ns
	assert.Equal(t, models.NotificationChannelUp, n.Method)
	ch, _ = st.Channel("ecg")
	assert.True(t, ch.Connected)

	st.SetChannelDown("ecg", "", errors.New("unplugged"))
	n = <-ns
	assert.Equal(t, models.NotificationChannelDown, n.Method)
	var params models.ChannelEventParams
	require.NoError(t, json.Unmarshal(n.Params, &params))
	assert.Equal(t, models.ChannelEventParams{
		Channel: "ecg",
		Source:  "ecgserial:/dev/ttyUSB0",
		Error:   "unplugged",
	}, params)

	ch, _ = st.Channel("ecg")
	assert.False(t, ch.Connected)
	assert.Equal(t, "unplugged", ch.LastError)

	// coming back up clears the error
	st.SetChannelUp("ecg", "ecgserial:/dev/ttyUSB0")
	<-ns
	ch, _ = st.Channel("ecg")
	assert.Empty(t, ch.LastError)
}

func TestReportOversize(t *testing.T) {
	t.Parallel()

	st, ns := NewState(uuid.New())
	st.ReportOversize("ecg", "ecgserial:COM3", 3)
	st.ReportOversize("ecg", "ecgserial:COM3", 4)

	assert.Equal(t, models.NotificationFramesOversize, (<-ns).Method)
	<-ns
	ch, ok := st.Channel("ecg")
	require.True(t, ok)
	assert.Equal(t, uint64(7), ch.Oversize)
}

func TestChannelsIsACopy(t *testing.T) {
	t.Parallel()

	st, _ := NewState(uuid.New())
	st.RegisterChannel("ppg", "ppgserial:COM4")

	chs := st.Channels()
	ch := chs["ppg"]
	ch.Connected = true
	chs["ppg"] = ch

	got, _ := st.Channel("ppg")
	assert.False(t, got.Connected)
	_, ok := st.Channel("missing")
	assert.False(t, ok)
}
