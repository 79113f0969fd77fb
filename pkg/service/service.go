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

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api"
	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/PulseWaveProject/pulsewave-core/pkg/api/notifications"
	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/PulseWaveProject/pulsewave-core/pkg/display"
	"github.com/PulseWaveProject/pulsewave-core/pkg/helpers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers/ecgserial"
	"github.com/PulseWaveProject/pulsewave-core/pkg/readers/ppgserial"
	"github.com/PulseWaveProject/pulsewave-core/pkg/ring"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/broker"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/discovery"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/publishers"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/samplequeue"
	"github.com/PulseWaveProject/pulsewave-core/pkg/service/state"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	ChannelECG = "ecg"
	ChannelPPG = "ppg"
)

type Options struct {
	// SessionID identifies the session in logs and reports. A new one is
	// generated when nil.
	SessionID uuid.UUID
	// ECGPortFactory and PPGPortFactory replace the real serial ports.
	ECGPortFactory readers.SerialPortFactory
	PPGPortFactory readers.SerialPortFactory
	// Clock drives the display poller. Nil uses the real clock.
	Clock clockwork.Clock
	// Renderers receive every display frame in addition to the built-in
	// log renderer.
	Renderers []display.Renderer
}

// Session is one run of the service: the buffers, the queue, both readers
// and everything consuming them. Buffers and queue live exactly as long as
// the session.
type Session struct {
	cfg       *config.Instance
	st        *state.State
	broker    *broker.Broker
	ecg       *ring.Buffer[int16]
	ppg       *ring.Buffer[float64]
	queue     *samplequeue.Queue
	ecgReader *ecgserial.Reader
	ppgReader *ppgserial.Reader
	poller    *display.Poller
	discovery *discovery.Service
	publisher *publishers.MQTTPublisher
	group     *errgroup.Group
	ecgEvents chan readers.Event
	ppgEvents chan readers.Event
	done      chan struct{}
	stopErr   error
	stopOnce  sync.Once
	frames    bool
}

// Start builds a session and opens both channels. A channel that fails to
// open is reported and left down; the other channel and the consumers keep
// running.
func Start(cfg *config.Instance, opts Options) (*Session, error) {
	id := opts.SessionID
	if id == uuid.Nil {
		id = uuid.New()
	}
	log.Info().
		Str("version", config.AppVersion).
		Str("session", id.String()).
		Msg("starting service")

	st, ns := state.NewState(id)
	notifBroker := broker.NewBroker(st.Context(), ns)
	notifBroker.Start()

	s := &Session{
		cfg:       cfg,
		st:        st,
		broker:    notifBroker,
		ecg:       ring.NewBuffer[int16](cfg.BufferCapacity()),
		ppg:       ring.NewBuffer[float64](cfg.BufferCapacity()),
		queue:     samplequeue.New(cfg.QueueCapacity()),
		ecgEvents: make(chan readers.Event, 16),
		ppgEvents: make(chan readers.Event, 16),
		done:      make(chan struct{}),
		frames:    cfg.APIEnabled(),
	}

	s.ecgReader = ecgserial.NewReader(s.ecg, s.queue,
		ecgserial.WithPortFactory(opts.ECGPortFactory),
		ecgserial.WithReadTimeout(cfg.ReadTimeout()),
	)
	s.ppgReader = ppgserial.NewReader(s.ppg,
		ppgserial.WithPortFactory(opts.PPGPortFactory),
		ppgserial.WithReadTimeout(cfg.ReadTimeout()),
	)

	s.poller = display.NewPoller(s.ecg, s.ppg, s.queue, cfg.PollInterval(), opts.Clock)
	s.poller.AddRenderer(display.NewLogRenderer(log.Logger))
	s.poller.AddRenderer(display.RendererFunc(s.publishFrame))
	for _, r := range opts.Renderers {
		s.poller.AddRenderer(r)
	}

	g, gctx := errgroup.WithContext(st.Context())
	s.group = g

	log.Info().Dur("interval", s.poller.Interval()).Msg("starting display poller")
	g.Go(func() error {
		return s.poller.Run(gctx)
	})
	g.Go(func() error {
		s.handleEvents(gctx)
		return nil
	})

	if cfg.Path() != "" {
		g.Go(func() error {
			if err := cfg.Watch(gctx, configChanged); err != nil {
				log.Warn().Err(err).Msg("config file will not be reloaded")
			}
			return nil
		})
	}

	if cfg.APIEnabled() {
		log.Info().Int("port", cfg.APIPort()).Msg("starting API service")
		apiNotifications, _ := notifBroker.Subscribe(100)
		g.Go(func() error {
			if err := api.Start(gctx, cfg, s, apiNotifications); err != nil {
				// sampling carries on without the API
				log.Error().Err(err).Msg("API service stopped")
			}
			return nil
		})

		s.discovery = discovery.New(cfg, id.String())
		if err := s.discovery.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start mDNS discovery")
		}
	}

	if addr := cfg.MQTTBroker(); addr != "" {
		s.startPublisher(addr, cfg.MQTTTopic(), cfg.MQTTFilter())
	}

	s.openChannel(ChannelECG, cfg.ECG(), s.ecgReader, s.ecgEvents)
	s.openChannel(ChannelPPG, cfg.PPG(), s.ppgReader, s.ppgEvents)

	return s, nil
}

// startPublisher connects in the background; an unreachable broker only
// costs the MQTT feed.
func (s *Session) startPublisher(addr, topic string, filter []string) {
	notifs, _ := s.broker.Subscribe(100, filter...)
	s.publisher = publishers.NewMQTTPublisher(addr, topic, filter)
	go func() {
		if err := s.publisher.Start(notifs); err != nil {
			log.Error().Err(err).Str("broker", addr).Msg("failed to start MQTT publisher")
		}
	}()
}

//nolint:gocritic // config struct copied for immutability
func configChanged(prev, next config.Values) {
	if prev.DebugLogging != next.DebugLogging {
		log.Info().Bool("debug", next.DebugLogging).Msg("debug logging changed")
		helpers.SetDebugLogging(next.DebugLogging)
	}
	if changed := config.ChangedSections(prev, next); len(changed) > 0 {
		log.Warn().Strs("sections", changed).Msg("config changes take effect after a restart")
	}
}

func (s *Session) openChannel(name string, ch config.Channel, r readers.Reader, events chan<- readers.Event) {
	if !ch.Enabled() {
		log.Info().Str("channel", name).Msg("channel has no device path, skipping")
		return
	}

	s.st.RegisterChannel(name, ch.ConnectionString())
	log.Info().
		Str("channel", name).
		Str("device", ch.ConnectionString()).
		Int("baud", ch.Baud).
		Msg("opening channel")

	if err := r.Open(ch, events); err != nil {
		log.Error().Err(err).Str("channel", name).Msg("failed to open channel")
		s.st.SetChannelDown(name, ch.ConnectionString(), err)
	}
}

func (s *Session) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.ecgEvents:
			s.handleEvent(ChannelECG, ev)
		case ev := <-s.ppgEvents:
			s.handleEvent(ChannelPPG, ev)
		}
	}
}

func (s *Session) handleEvent(name string, ev readers.Event) {
	switch ev.Kind {
	case readers.EventChannelUp:
		log.Info().Str("channel", name).Str("device", ev.Source).Msg("channel up")
		s.st.SetChannelUp(name, ev.Source)
	case readers.EventChannelDown:
		log.Error().Err(ev.Err).Str("channel", name).Str("device", ev.Source).Msg("channel down")
		s.st.SetChannelDown(name, ev.Source, ev.Err)
	case readers.EventOversize:
		log.Warn().Err(ev.Err).
			Str("channel", name).
			Uint64("frames", ev.Count).
			Msg("repeated oversize frames")
		s.st.ReportOversize(name, ev.Source, ev.Count)
	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("unknown reader event")
	}
}

func (s *Session) publishFrame(f *display.Frame) {
	if !s.frames || (len(f.Entries) == 0 && len(f.NewPPG) == 0) {
		return
	}
	params := &models.FrameParams{
		Time:    f.Time,
		ECG:     make([]int16, len(f.Entries)),
		PPG:     append([]float64(nil), f.NewPPG...),
		Vitals:  vitalsResponse(f.Vitals),
		Dropped: f.Dropped,
	}
	for i, e := range f.Entries {
		params.ECG[i] = e.ECG
	}
	notifications.Frame(s.st.Notifications, params)
}

func (s *Session) ID() uuid.UUID {
	return s.st.SessionID()
}

// Done is closed once Stop has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop closes both channels, which waits up to a read timeout each for the
// read loops to exit, then stops the poller, the API and the broker.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("stopping service")
		var errs []error

		for _, c := range s.channels() {
			wasUp := c.reader.Connected()
			if err := c.reader.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s channel: %w", c.name, err))
			}
			if wasUp {
				s.st.SetChannelDown(c.name, "", nil)
			}
		}

		if s.discovery != nil {
			s.discovery.Stop()
		}
		if s.publisher != nil {
			s.publisher.Stop()
		}

		s.st.StopService()
		if err := s.group.Wait(); err != nil {
			errs = append(errs, err)
		}
		s.queue.Close()
		<-s.broker.Done()

		s.stopErr = errors.Join(errs...)
		log.Info().Msg("service cleanup completed")
		close(s.done)
	})
	return s.stopErr
}

type channelReader struct {
	reader readers.Reader
	cfg    config.Channel
	name   string
}

func (s *Session) channels() []channelReader {
	return []channelReader{
		{name: ChannelECG, reader: s.ecgReader, cfg: s.cfg.ECG()},
		{name: ChannelPPG, reader: s.ppgReader, cfg: s.cfg.PPG()},
	}
}

// Status reports both channels, the queue and the session.
func (s *Session) Status() models.StatusResponse {
	resp := models.StatusResponse{
		Started:  s.st.Started(),
		Version:  config.AppVersion,
		Session:  s.st.SessionID(),
		Channels: make(map[string]models.ChannelStatus, 2),
		Queue: models.QueueStatus{
			Capacity: s.queue.Cap(),
			Pending:  s.queue.Len(),
			Enqueued: s.queue.Enqueued(),
			Dropped:  s.queue.Dropped(),
		},
	}
	for _, c := range s.channels() {
		cs := models.ChannelStatus{
			Driver:    c.cfg.Driver,
			Path:      c.cfg.Path,
			Baud:      c.cfg.Baud,
			Connected: c.reader.Connected(),
		}
		if c.cfg.Enabled() {
			cs.ID = readers.ChannelID(c.cfg.Driver, c.cfg.Path)
		}
		switch r := c.reader.(type) {
		case *ecgserial.Reader:
			cs.Stats = r.Stats()
		case *ppgserial.Reader:
			cs.Stats = r.Stats()
		}
		resp.Channels[c.name] = cs
	}

	hs := helpers.ReadHostStats()
	resp.Host = &models.HostStatus{
		UptimeSeconds: hs.UptimeSeconds,
		MemoryTotal:   hs.MemoryTotal,
		MemoryUsed:    hs.MemoryUsed,
	}
	return resp
}

// Snapshot returns the buffered window of one channel, oldest first.
func (s *Session) Snapshot(channel string) (any, error) {
	switch channel {
	case ChannelECG:
		samples := make([]int16, s.ecg.Cap())
		n, pushes := s.ecg.SnapshotPushes(samples)
		return models.SnapshotResponse[int16]{
			Channel: channel,
			Samples: samples[:n],
			Pushes:  pushes,
		}, nil
	case ChannelPPG:
		samples := make([]float64, s.ppg.Cap())
		n, pushes := s.ppg.SnapshotPushes(samples)
		return models.SnapshotResponse[float64]{
			Channel: channel,
			Samples: samples[:n],
			Pushes:  pushes,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownChannel, channel)
	}
}

func (s *Session) Vitals() models.VitalsResponse {
	return vitalsResponse(s.poller.Vitals())
}

// Reset clears both buffers and any queued samples. The readers keep
// running; the next sample starts a fresh window.
func (s *Session) Reset() models.ResetResponse {
	s.ecg.Reset()
	s.ppg.Reset()
	s.queue.Drain(nil, 0)
	s.poller.Reset()

	cleared := []string{ChannelECG, ChannelPPG}
	log.Info().Strs("channels", cleared).Msg("buffers reset")
	notifications.BuffersReset(s.st.Notifications, models.ResetResponse{Reset: cleared})
	return models.ResetResponse{Reset: cleared}
}

func vitalsResponse(v display.Vitals) models.VitalsResponse {
	resp := models.VitalsResponse{
		HeartRate:       v.HeartRate,
		RespirationRate: v.RespirationRate,
		Valid:           v.Valid,
	}
	if !v.Updated.IsZero() {
		updated := v.Updated
		resp.Updated = &updated
	}
	return resp
}
