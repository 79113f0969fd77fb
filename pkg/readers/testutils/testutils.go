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

// Package testutils provides common testing utilities for reader tests.
package testutils

import (
	"testing"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"github.com/stretchr/testify/require"
)

// CreateTestEventChannel creates a buffered channel for reader events with
// capacity of 10.
func CreateTestEventChannel(_ *testing.T) chan readers.Event {
	return make(chan readers.Event, 10)
}

// AssertEventReceived waits for an event of the given kind, skipping other
// kinds, and fails the test if none arrives within timeout.
func AssertEventReceived(
	t *testing.T,
	ch chan readers.Event,
	kind readers.EventKind,
	timeout time.Duration,
) readers.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			require.Fail(t, "expected event to be received within timeout",
				"kind: %s, timeout: %v", kind, timeout)
			return readers.Event{}
		}
	}
}

// AssertNoEvent verifies that no event is received on the channel within
// the timeout.
func AssertNoEvent(t *testing.T, ch chan readers.Event, timeout time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		require.Fail(t, "unexpected event received",
			"kind=%s, source=%s, err=%v", ev.Kind, ev.Source, ev.Err)
	case <-time.After(timeout):
	}
}

// Eventually polls cond until it returns true or the timeout passes.
func Eventually(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, cond, timeout, 5*time.Millisecond, msg)
}

// CreateTempDevicePath creates a temporary file to represent a device path
// for testing. On Windows it returns a COM port path, since the path check
// is skipped there.
func CreateTempDevicePath(t *testing.T) string {
	t.Helper()

	if isWindows() {
		return "COM1"
	}

	f, err := createTempFile(t, "", "device-test-*")
	if err != nil {
		t.Fatalf("failed to create temp device path: %v", err)
	}

	path := f.Name()
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	t.Cleanup(func() {
		_ = removeTempFile(path)
	})

	return path
}
