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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Channel updates must not hold the lock while notifying: with a consumer
// slower than the writers, readers of the state would otherwise stall.
// Under -tags=deadlock a lock held too long fails the test.
func TestChannelUpdates_NoDeadlockWithSlowConsumer(t *testing.T) {
	t.Parallel()

	st, notifications := NewState(uuid.New())

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-notifications:
				time.Sleep(time.Millisecond)
			case <-done:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := []string{"ecg", "ppg"}[i%2]
			for range 200 {
				st.SetChannelUp(name, name+"serial:test")
				st.SetChannelDown(name, "", errors.New("gone"))
				_ = st.Channels()
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("channel updates blocked")
	}
}
