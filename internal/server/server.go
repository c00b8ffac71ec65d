/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the admin HTTP API and the SSE event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_tv/internal/config"
	"github.com/friendsincode/hearth_tv/internal/events"
	"github.com/friendsincode/hearth_tv/internal/library"
	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/playback"
	"github.com/friendsincode/hearth_tv/internal/session"
	"github.com/friendsincode/hearth_tv/internal/settings"
	"github.com/friendsincode/hearth_tv/internal/telemetry"
	"github.com/friendsincode/hearth_tv/internal/version"
)

// Server bundles the HTTP stack over the playback services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	orch     *playback.Orchestrator
	settings *settings.Service
	library  *library.Service
	bus      *events.Bus
	updates  *version.Checker
}

// New constructs the server and wires routes. updates may be nil when
// release checking is disabled.
func New(cfg *config.Config, orch *playback.Orchestrator, settingsSvc *settings.Service, librarySvc *library.Service, bus *events.Bus, updates *version.Checker, logger zerolog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeaders)
	router.Use(telemetry.MetricsMiddleware)
	// The SSE stream is long-lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/events" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		router:   router,
		orch:     orch,
		settings: settingsSvc,
		library:  librarySvc,
		bus:      bus,
		updates:  updates,
	}
	srv.routes()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return srv
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/v1/version", s.handleVersion)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSessionState)
		r.Post("/session/start", s.handleSessionStart)
		r.Post("/session/stop", s.handleSessionStop)
		r.Post("/session/next", s.handleSessionNext)
		r.Post("/session/pause", s.handleSessionPause)
		r.Post("/session/skip-quota", s.handleSkipQuota)

		r.Get("/queue", s.handleQueue)
		r.Post("/queue/shuffle", s.handleQueueShuffle)

		r.Get("/media", s.handleMediaList)
		r.Get("/history", s.handleHistory)
		r.Post("/library/rescan", s.handleRescan)

		r.Get("/settings", s.handleSettingsGet)
		r.Put("/settings", s.handleSettingsPut)

		r.Get("/events", s.handleEvents)
	})
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("admin API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeJSON(w, http.StatusOK, version.UpdateInfo{CurrentVersion: version.Version})
		return
	}
	writeJSON(w, http.StatusOK, s.updates.Info())
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.StartSession(r.Context()); err != nil {
		s.commandError(w, "session start", err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Stop(r.Context()); err != nil {
		s.commandError(w, "session stop", err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleSessionNext(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.PlayNext(r.Context()); err != nil {
		s.commandError(w, "skip", err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Pause(r.Context()); err != nil {
		s.commandError(w, "pause", err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleSkipQuota(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.SkipQuotaAndResume(r.Context()); err != nil {
		s.commandError(w, "skip quota", err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	state := s.orch.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"off_air":  state.OffAir,
		"current":  state.Current,
		"upcoming": state.Upcoming,
	})
}

func (s *Server) handleQueueShuffle(w http.ResponseWriter, r *http.Request) {
	s.orch.ShuffleQueue()
	writeJSON(w, http.StatusOK, map[string]any{
		"upcoming": s.orch.State().Upcoming,
	})
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	items, err := s.library.GetAll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("media list failed")
		writeError(w, http.StatusInternalServerError, "media_list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	rows, err := s.library.RecentPlays(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history list failed")
		writeError(w, http.StatusInternalServerError, "history_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plays": rows})
}

// handleRescan optionally imports a scan manifest, then re-partitions the
// scheduler's media snapshot. This is the only path that refreshes the
// snapshot mid-session.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ManifestPath string `json:"manifest_path"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
	}

	response := map[string]any{}
	if req.ManifestPath != "" {
		manifest, err := library.ReadManifest(req.ManifestPath)
		if err != nil {
			s.logger.Error().Err(err).Msg("manifest read failed")
			writeError(w, http.StatusBadRequest, "manifest_unreadable")
			return
		}
		result, err := s.library.ImportManifest(r.Context(), manifest)
		if err != nil {
			s.logger.Error().Err(err).Msg("manifest import failed")
			writeError(w, http.StatusInternalServerError, "import_failed")
			return
		}
		response["created"] = result.Created
		response["updated"] = result.Updated
		response["pruned"] = result.Pruned
	}

	if err := s.orch.RefreshLibrary(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("snapshot refresh failed")
		writeError(w, http.StatusInternalServerError, "refresh_failed")
		return
	}
	s.bus.Publish(events.EventLibraryChanged, events.Payload{"source": "rescan"})
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Get()
	if err != nil {
		s.logger.Error().Err(err).Msg("settings read failed")
		writeError(w, http.StatusInternalServerError, "settings_read_failed")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var updated models.SystemSettings
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := updated.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "validation_failed",
			"detail": err.Error(),
		})
		return
	}
	saved, err := s.settings.Update(&updated)
	if err != nil {
		s.logger.Error().Err(err).Msg("settings update failed")
		writeError(w, http.StatusInternalServerError, "settings_update_failed")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleEvents streams bus events as SSE until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.bus.SubscribeAll()
	defer s.bus.Unsubscribe("", sub)

	// Initial sync frame so late subscribers see current state.
	s.writeSSE(w, events.Envelope{
		Type:    events.EventSync,
		Payload: events.Payload{"state": s.orch.State()},
	})
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case env, ok := <-sub:
			if !ok {
				return
			}
			s.writeSSE(w, env)
			flusher.Flush()
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data)
}

func (s *Server) commandError(w http.ResponseWriter, op string, err error) {
	var validation *session.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "validation_failed",
			"detail": validation.Error(),
		})
		return
	}
	if errors.Is(err, session.ErrSessionActive) {
		writeError(w, http.StatusConflict, "session_active")
		return
	}
	if errors.Is(err, session.ErrSessionInactive) {
		writeError(w, http.StatusConflict, "session_inactive")
		return
	}
	s.logger.Error().Err(err).Str("op", op).Msg("command failed")
	writeError(w, http.StatusBadGateway, "player_command_failed")
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
