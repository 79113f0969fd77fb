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
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/PulseWaveProject/pulsewave-core/pkg/api/notifications"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	"github.com/google/uuid"
)

// ChannelState is the last known condition of one sensor channel.
type ChannelState struct {
	Since     time.Time
	Name      string
	Source    string
	LastError string
	Oversize  uint64
	Connected bool
}

// State holds the runtime state of one service session.
//
// Never send notifications while holding mu: prepare the payload under the
// lock, unlock, then send.
type State struct {
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	Notifications chan<- models.Notification
	channels      map[string]*ChannelState
	started       time.Time
	sessionID     uuid.UUID
	mu            syncutil.RWMutex
	stopService   bool
}

func NewState(sessionID uuid.UUID) (state *State, notificationCh <-chan models.Notification) {
	// frames arrive every poll interval, leave room for a slow broker
	ns := make(chan models.Notification, 256)
	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	return &State{
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		Notifications: ns,
		channels:      make(map[string]*ChannelState),
		started:       time.Now(),
		sessionID:     sessionID,
	}, ns
}

func (s *State) Context() context.Context {
	return s.ctx
}

func (s *State) SessionID() uuid.UUID {
	return s.sessionID
}

func (s *State) Started() time.Time {
	return s.started
}

func (s *State) StopService() {
	s.mu.Lock()
	s.stopService = true
	s.mu.Unlock()
	s.ctxCancelFunc()
}

func (s *State) ShouldStopService() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopService
}

func (s *State) channel(name string) *ChannelState {
	ch, ok := s.channels[name]
	if !ok {
		ch = &ChannelState{Name: name}
		s.channels[name] = ch
	}
	return ch
}

// RegisterChannel records a channel as configured but not yet connected.
func (s *State) RegisterChannel(name, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channel(name)
	ch.Source = source
}

func (s *State) SetChannelUp(name, source string) {
	s.mu.Lock()
	ch := s.channel(name)
	ch.Connected = true
	ch.Source = source
	ch.LastError = ""
	ch.Since = time.Now()
	payload := models.ChannelEventParams{Channel: name, Source: source}
	s.mu.Unlock()

	notifications.ChannelUp(s.Notifications, payload)
}

// SetChannelDown marks the channel disconnected. err may be nil for a
// channel that was stopped on purpose.
func (s *State) SetChannelDown(name, source string, err error) {
	s.mu.Lock()
	ch := s.channel(name)
	ch.Connected = false
	if source != "" {
		ch.Source = source
	}
	ch.Since = time.Now()
	payload := models.ChannelEventParams{Channel: name, Source: ch.Source}
	if err != nil {
		ch.LastError = err.Error()
		payload.Error = ch.LastError
	}
	s.mu.Unlock()

	notifications.ChannelDown(s.Notifications, payload)
}

func (s *State) ReportOversize(name, source string, count uint64) {
	s.mu.Lock()
	ch := s.channel(name)
	ch.Oversize += count
	payload := models.ChannelEventParams{Channel: name, Source: source, Count: count}
	s.mu.Unlock()

	notifications.FramesOversize(s.Notifications, payload)
}

func (s *State) Channel(name string) (ChannelState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	if !ok {
		return ChannelState{}, false
	}
	return *ch, true
}

// Channels returns a copy of every known channel keyed by name.
func (s *State) Channels() map[string]ChannelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ChannelState, len(s.channels))
	for name, ch := range s.channels {
		out[name] = *ch
	}
	return out
}
