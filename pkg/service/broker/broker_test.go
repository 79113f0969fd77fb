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

package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notif(method string) models.Notification {
	return models.Notification{Method: method, Params: []byte(`{}`)}
}

func recv(t *testing.T, ch <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "subscriber channel closed")
		return n
	case <-time.After(time.Second):
		require.Fail(t, "no notification received")
		return models.Notification{}
	}
}

func TestBroker_SubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(context.Background(), make(chan models.Notification))

	ch, id := b.Subscribe(10)
	_, id2 := b.Subscribe(20)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, id2)
	assert.Equal(t, 2, b.Subscribers())

	b.Unsubscribe(id)
	assert.Equal(t, 1, b.Subscribers())
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")

	// unsubscribing twice is a no-op
	b.Unsubscribe(id)
}

func TestBroker_BroadcastToMultipleSubscribers(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 10)
	b := NewBroker(context.Background(), source)
	b.Start()

	sub1, _ := b.Subscribe(10)
	sub2, _ := b.Subscribe(10)

	source <- notif(models.NotificationChannelUp)

	assert.Equal(t, models.NotificationChannelUp, recv(t, sub1).Method)
	assert.Equal(t, models.NotificationChannelUp, recv(t, sub2).Method)
	close(source)
	<-b.Done()
}

func TestBroker_MethodFilter(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 10)
	b := NewBroker(context.Background(), source)
	b.Start()

	events, _ := b.Subscribe(10, models.NotificationChannelUp, models.NotificationChannelDown)
	all, _ := b.Subscribe(10)

	source <- notif(models.NotificationFrame)
	source <- notif(models.NotificationChannelDown)

	assert.Equal(t, models.NotificationChannelDown, recv(t, events).Method)
	assert.Equal(t, models.NotificationFrame, recv(t, all).Method)
	assert.Equal(t, models.NotificationChannelDown, recv(t, all).Method)
	close(source)
	<-b.Done()
}

func TestBroker_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	b := NewBroker(context.Background(), source)
	b.Start()

	slow, _ := b.Subscribe(2)
	fast, _ := b.Subscribe(20)

	for range 10 {
		source <- notif(models.NotificationFrame)
	}
	for range 10 {
		recv(t, fast)
	}

	close(source)
	<-b.Done()

	received := 0
	for range slow {
		received++
	}
	assert.Equal(t, 2, received)
}

func TestBroker_ContextCancellationClosesSubscribers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker(ctx, make(chan models.Notification))
	b.Start()

	sub, _ := b.Subscribe(10)
	cancel()
	<-b.Done()

	_, ok := <-sub
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers())
}

func TestBroker_SubscriberReceivesInOrder(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	b := NewBroker(context.Background(), source)
	b.Start()

	sub, _ := b.Subscribe(100)
	methods := []string{"event.one", "event.two", "event.three", "event.four"}
	for _, m := range methods {
		source <- notif(m)
	}
	for i, m := range methods {
		assert.Equal(t, m, recv(t, sub).Method, "notification %d out of order", i)
	}
	close(source)
	<-b.Done()
}

func TestBroker_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	b := NewBroker(context.Background(), source)
	b.Start()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, id := b.Subscribe(5)
			time.Sleep(5 * time.Millisecond)
			b.Unsubscribe(id)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			source <- notif(models.NotificationFrame)
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	close(source)
	<-b.Done()
	assert.Zero(t, b.Subscribers())
}
