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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch follows the config file on disk until ctx is done. On every valid
// change the debug_logging setting is applied in place and onChange is
// called with the previous and new file contents. Other settings need a
// restart; onChange can report them. Invalid edits are logged and skipped.
func (c *Instance) Watch(ctx context.Context, onChange func(prev, next Values)) error {
	c.mu.RLock()
	path := c.cfgPath
	defaults := c.defaults
	c.mu.RUnlock()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Debug().Err(err).Msg("closing config watcher")
		}
	}()

	// editors often replace the file, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	log.Debug().Str("path", path).Msg("watching config file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) ||
				!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c.reload(path, defaults, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

//nolint:gocritic // config struct copied for immutability
func (c *Instance) reload(path string, defaults Values, onChange func(prev, next Values)) {
	next, err := readValues(path, defaults)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring invalid config change")
		return
	}

	c.mu.Lock()
	prev := c.vals
	c.vals.DebugLogging = next.DebugLogging
	c.mu.Unlock()

	log.Info().Str("path", path).Msg("config file changed")
	if onChange != nil {
		onChange(prev, next)
	}
}

// ChangedSections names the sections that differ between prev and next,
// leaving out debug_logging which applies live.
//
//nolint:gocritic // config struct copied for immutability
func ChangedSections(prev, next Values) []string {
	var changed []string
	if prev.ECG != next.ECG {
		changed = append(changed, "ecg")
	}
	if prev.PPG != next.PPG {
		changed = append(changed, "ppg")
	}
	if prev.Buffer != next.Buffer {
		changed = append(changed, "buffer")
	}
	if prev.Timing != next.Timing {
		changed = append(changed, "timing")
	}
	if prev.API.Port != next.API.Port || prev.API.Enabled != next.API.Enabled ||
		!slices.Equal(prev.API.AllowedIPs, next.API.AllowedIPs) {
		changed = append(changed, "api")
	}
	if prev.Discovery != next.Discovery {
		changed = append(changed, "discovery")
	}
	if prev.MQTT.Broker != next.MQTT.Broker || prev.MQTT.Topic != next.MQTT.Topic ||
		!slices.Equal(prev.MQTT.Filter, next.MQTT.Filter) {
		changed = append(changed, "mqtt")
	}
	if prev.Telemetry != next.Telemetry {
		changed = append(changed, "telemetry")
	}
	return changed
}
