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

package publishers

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers/syncutil"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = time.Second
	// quiesce is how long Disconnect waits for in-flight work, in ms.
	quiesce = 250
)

var ErrConnectTimeout = errors.New("timed out connecting to MQTT broker")

// MQTTPublisher forwards notifications to an MQTT broker. Each notification
// is published to <topic>/<method> with its params as the payload.
type MQTTPublisher struct {
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	stopCh    chan struct{}
	done      chan struct{}
	broker    string
	topic     string
	filter    []string
	published uint64
	failed    uint64
	mu        syncutil.Mutex
	stopOnce  sync.Once
}

// NewMQTTPublisher returns a publisher for broker (host:port). An empty
// filter publishes every notification method.
func NewMQTTPublisher(broker, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    broker,
		topic:     topic,
		filter:    filter,
		newClient: mqtt.NewClient,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *MQTTPublisher) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.broker)
	opts.SetClientID("pulsewave-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", p.broker).Msg("mqtt publisher: connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", p.broker).Msg("mqtt publisher: connection lost")
	}
	return opts
}

// Start connects to the broker and forwards notifications until Stop is
// called or the channel closes.
func (p *MQTTPublisher) Start(notifications <-chan models.Notification) error {
	client := p.newClient(p.clientOptions())

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		close(p.done)
		return fmt.Errorf("%w: %s", ErrConnectTimeout, p.broker)
	}
	if err := token.Error(); err != nil {
		close(p.done)
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	p.mu.Lock()
	select {
	case <-p.stopCh:
		// stopped while connecting
		p.mu.Unlock()
		close(p.done)
		client.Disconnect(quiesce)
		return nil
	default:
	}
	p.client = client
	p.mu.Unlock()

	log.Info().Str("broker", p.broker).Str("topic", p.topic).Msg("mqtt publisher started")
	go p.publishNotifications(client, notifications)
	return nil
}

// Stop ends publishing and disconnects. Safe to call more than once and
// before Start.
func (p *MQTTPublisher) Stop() {
	p.mu.Lock()
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if client == nil {
		return
	}

	<-p.done
	if client.IsConnected() {
		log.Debug().Msg("mqtt publisher: disconnecting")
		client.Disconnect(quiesce)
	}
}

// Stats returns the number of published and failed messages.
func (p *MQTTPublisher) Stats() (published, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}

func (p *MQTTPublisher) publishNotifications(client mqtt.Client, notifications <-chan models.Notification) {
	defer close(p.done)

	for {
		select {
		case <-p.stopCh:
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("mqtt publisher: notification channel closed")
				return
			}
			if !p.matchesFilter(notif.Method) {
				continue
			}
			p.publish(client, notif)
		}
	}
}

func (p *MQTTPublisher) publish(client mqtt.Client, notif models.Notification) {
	payload := []byte(notif.Params)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	token := client.Publish(p.Topic(notif.Method), 0, false, payload)
	ok := token.WaitTimeout(publishTimeout) && token.Error() == nil

	p.mu.Lock()
	if ok {
		p.published++
	} else {
		p.failed++
	}
	p.mu.Unlock()

	if !ok {
		log.Debug().Err(token.Error()).Str("method", notif.Method).Msg("mqtt publisher: publish failed")
	}
}

// Topic returns the topic a notification method is published to.
func (p *MQTTPublisher) Topic(method string) string {
	return p.topic + "/" + method
}

func (p *MQTTPublisher) matchesFilter(method string) bool {
	return len(p.filter) == 0 || slices.Contains(p.filter, method)
}
