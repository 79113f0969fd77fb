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

// Package api serves the sample pipeline to external displays: JSON
// endpoints for status, snapshots and vitals, and a websocket carrying
// every notification, display frames included.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/PulseWaveProject/pulsewave-core/pkg/api/middleware"
	"github.com/PulseWaveProject/pulsewave-core/pkg/api/models"
	"github.com/PulseWaveProject/pulsewave-core/pkg/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 2 * time.Second

// Source is the running session as seen by the API.
type Source interface {
	Status() models.StatusResponse
	// Snapshot returns a models.SnapshotResponse for the channel, or an
	// error wrapping models.ErrUnknownChannel.
	Snapshot(channel string) (any, error)
	Vitals() models.VitalsResponse
	Reset() models.ResetResponse
}

var ErrorRateLimited = models.ErrorObject{
	Code:    -32000,
	Message: "Rate limit exceeded",
}

var ErrorInvalidMessage = models.ErrorObject{
	Code:    -32600,
	Message: "Invalid message",
}

type errorResponse struct {
	Error models.ErrorObject `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: models.ErrorObject{
		Code:    status,
		Message: msg,
	}})
}

func handleStatus(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Status())
	}
}

func handleSnapshot(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		snap, err := src.Snapshot(channel)
		if errors.Is(err, models.ErrUnknownChannel) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		} else if err != nil {
			log.Error().Err(err).Msg("error taking snapshot")
			writeError(w, http.StatusInternalServerError, "snapshot failed")
			return
		}

		switch r.URL.Query().Get("format") {
		case "", "json":
			writeJSON(w, http.StatusOK, snap)
		case "csv":
			if err := writeCSV(w, channel, snap); err != nil {
				log.Error().Err(err).Msg("error writing csv snapshot")
				writeError(w, http.StatusInternalServerError, "csv export failed")
			}
		default:
			writeError(w, http.StatusBadRequest, "unsupported format")
		}
	}
}

func handleVitals(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, src.Vitals())
	}
}

func handleReset(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("addr", r.RemoteAddr).Msg("buffer reset requested")
		writeJSON(w, http.StatusOK, src.Reset())
	}
}

func sendWSError(session *melody.Session, e models.ErrorObject) {
	data, err := json.Marshal(errorResponse{Error: e})
	if err != nil {
		log.Error().Err(err).Msg("marshalling websocket error")
		return
	}
	if err := session.Write(data); err != nil {
		log.Debug().Err(err).Msg("sending websocket error")
	}
}

// handleWSMessage answers heartbeats. Clients only listen otherwise, so
// anything else is rejected.
func handleWSMessage(limiter *middleware.IPRateLimiter) func(*melody.Session, []byte) {
	pong, _ := json.Marshal(models.Notification{Method: models.MethodPong})

	return func(session *melody.Session, msg []byte) {
		host := middleware.ParseRemoteIP(session.Request.RemoteAddr).String()
		if !limiter.Allow(host) {
			log.Warn().Str("ip", host).Int("msg_size", len(msg)).Msg("websocket rate limit exceeded")
			sendWSError(session, ErrorRateLimited)
			return
		}

		// plain text heartbeat
		if string(msg) == models.MethodPing {
			if err := session.Write([]byte(models.MethodPong)); err != nil {
				log.Debug().Err(err).Msg("sending pong")
			}
			return
		}

		var req models.Notification
		if err := json.Unmarshal(msg, &req); err != nil || req.Method != models.MethodPing {
			log.Debug().Str("msg", string(msg)).Msg("unexpected websocket message")
			sendWSError(session, ErrorInvalidMessage)
			return
		}
		if err := session.Write(pong); err != nil {
			log.Debug().Err(err).Msg("sending pong")
		}
	}
}

func broadcastNotifications(ctx context.Context, m *melody.Melody, notifs <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifs:
			if !ok {
				return
			}
			data, err := json.Marshal(notif)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := m.Broadcast(data); err != nil {
				if errors.Is(err, melody.ErrClosed) {
					return
				}
				log.Error().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// NewRouter builds the API handler. Notifications are broadcast to
// websocket clients until ctx is done, at which point all websocket
// sessions are closed.
func NewRouter(
	ctx context.Context,
	cfg *config.Instance,
	src Source,
	notifs <-chan models.Notification,
) http.Handler {
	limiter := middleware.NewIPRateLimiter(middleware.RequestsPerMinute, middleware.BurstSize, nil)
	go limiter.RunCleanup(ctx)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.IPFilterMiddleware(middleware.NewIPFilter(cfg.APIAllowedIPs())))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	m := melody.New()
	m.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
	m.HandleMessage(handleWSMessage(limiter))
	m.HandleConnect(func(s *melody.Session) {
		log.Debug().Str("addr", s.Request.RemoteAddr).Msg("websocket client connected")
	})
	go func() {
		broadcastNotifications(ctx, m, notifs)
		if err := m.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
			log.Debug().Err(err).Msg("closing websocket hub")
		}
	}()

	r.Get("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := m.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(limiter))
		r.Use(chimiddleware.NoCache)
		r.Use(chimiddleware.Timeout(config.APIRequestTimeout))
		r.Get("/api/status", handleStatus(src))
		r.Get("/api/vitals", handleVitals(src))
		r.Get("/api/snapshot/{channel}", handleSnapshot(src))
		r.Post("/api/reset", handleReset(src))
	})

	return r
}

// Start serves the API on the configured port until ctx is done.
func Start(
	ctx context.Context,
	cfg *config.Instance,
	src Source,
	notifs <-chan models.Notification,
) error {
	addr := net.JoinHostPort("", strconv.Itoa(cfg.APIPort()))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, cfg, src, notifs)
}

// Serve is Start on an existing listener.
func Serve(
	ctx context.Context,
	ln net.Listener,
	cfg *config.Instance,
	src Source,
	notifs <-chan models.Notification,
) error {
	routerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           NewRouter(routerCtx, cfg, src, notifs),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("API listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API shutdown failed: %w", err)
	}
	<-errCh
	log.Info().Msg("API stopped")
	return nil
}
