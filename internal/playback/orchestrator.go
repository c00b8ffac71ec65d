/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback runs the polling loop that drives the external player.
// The wire protocols expose no track-change notifications, so transitions
// are inferred from position samples and never pushed.
//
// One mutex serializes user commands and loop iterations; the queue
// scheduler and session clock are mutated only under it.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_tv/internal/events"
	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/player"
	"github.com/friendsincode/hearth_tv/internal/schedule"
	"github.com/friendsincode/hearth_tv/internal/session"
	"github.com/friendsincode/hearth_tv/internal/telemetry"
)

var tracer = telemetry.Tracer("hearthtv/playback")

// MediaResolver looks media items up by id.
type MediaResolver interface {
	GetByID(ctx context.Context, id string) (*models.MediaItem, error)
}

// HistoryRecorder persists play-history rows.
type HistoryRecorder interface {
	RecordPlay(ctx context.Context, item models.MediaItem, startedAt time.Time) error
}

// SettingsSource supplies the off-air asset id.
type SettingsSource interface {
	Get() (*models.SystemSettings, error)
}

// Config tunes the polling loop.
type Config struct {
	PollInterval      time.Duration
	StopRecheckDelay  time.Duration
	DisconnectBackoff time.Duration
}

// Orchestrator owns the playback loop and the synchronous session commands.
type Orchestrator struct {
	cfg      Config
	player   player.Controller
	sched    *schedule.Scheduler
	clock    *session.Clock
	media    MediaResolver
	history  HistoryRecorder
	settings SettingsSource
	bus      *events.Bus
	logger   zerolog.Logger

	mu           sync.Mutex
	current      *models.MediaItem
	lastPosition float64
	lastPlaying  bool
	offAir       bool
	disconnected bool // log-once flag for the current disconnection episode
}

// New creates an orchestrator.
func New(cfg Config, p player.Controller, sched *schedule.Scheduler, clock *session.Clock, media MediaResolver, history HistoryRecorder, settings SettingsSource, bus *events.Bus, logger zerolog.Logger) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.StopRecheckDelay <= 0 {
		cfg.StopRecheckDelay = 800 * time.Millisecond
	}
	if cfg.DisconnectBackoff <= 0 {
		cfg.DisconnectBackoff = 5 * time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		player:   p,
		sched:    sched,
		clock:    clock,
		media:    media,
		history:  history,
		settings: settings,
		bus:      bus,
		logger:   logger.With().Str("component", "playback").Logger(),
	}
}

// Run drives the polling loop until ctx is cancelled. The loop never
// terminates itself on errors.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Dur("poll_interval", o.cfg.PollInterval).Msg("playback loop started")
	for {
		delay := o.iterate(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// iterate runs one poll cycle and returns the delay before the next one.
func (o *Orchestrator) iterate(ctx context.Context) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Off-air loops the fallback asset on the player's own loop flag; idle
	// has nothing to track. Neither needs transition logic.
	if o.offAir || !o.clock.IsActive() {
		return o.cfg.PollInterval
	}

	status, err := o.player.Status(ctx)
	if err != nil {
		return o.handlePollError(err)
	}
	o.disconnected = false
	telemetry.PollsTotal.WithLabelValues("ok").Inc()

	if status.IsPlaying != o.lastPlaying {
		o.lastPlaying = status.IsPlaying
		o.broadcastPlayState(status.IsPlaying)
	}

	if o.current == nil {
		o.lastPosition = status.PositionSeconds
		return o.cfg.PollInterval
	}

	// Stop detection runs before transition logic: a silent player that was
	// well into a track either finished the playlist or died. Re-poll once
	// after a short wait to rule out inter-track buffering.
	if !status.IsPlaying && status.State != player.StatePaused && o.lastPosition > 3 {
		if o.confirmStopped(ctx) {
			o.logger.Info().Str("last_file", o.current.Filename).Msg("player stopped, going off air")
			o.enterOffAir(ctx)
		}
		return o.cfg.PollInterval
	}

	lateThreshold := o.current.DurationSeconds * 0.5
	if lateThreshold < 3 {
		lateThreshold = 3
	}

	positionReset := o.lastPosition > lateThreshold && status.PositionSeconds < 3 && status.IsPlaying
	beyondExpected := status.PositionSeconds > o.current.DurationSeconds+5 && status.IsPlaying

	if positionReset || beyondExpected {
		kind := "position_reset"
		if beyondExpected {
			kind = "beyond_expected"
		}
		telemetry.TransitionsTotal.WithLabelValues(kind).Inc()
		o.handleTransition(ctx, status.PositionSeconds, kind)
		return o.cfg.PollInterval
	}

	o.lastPosition = status.PositionSeconds
	return o.cfg.PollInterval
}

func (o *Orchestrator) handlePollError(err error) time.Duration {
	if player.IsConnectionError(err) {
		telemetry.PollsTotal.WithLabelValues("connection_error").Inc()
		if !o.disconnected {
			o.disconnected = true
			o.logger.Warn().Err(err).Msg("player unreachable, backing off")
		}
		// Bounded reconnect attempt; the backoff period caps how long the
		// command mutex stays held.
		dialCtx, cancel := context.WithTimeout(context.Background(), o.cfg.DisconnectBackoff)
		if err := o.player.Connect(dialCtx); err != nil {
			o.logger.Debug().Err(err).Msg("reconnect attempt failed")
		}
		cancel()
		return o.cfg.DisconnectBackoff
	}
	telemetry.PollsTotal.WithLabelValues("error").Inc()
	o.logger.Warn().Err(err).Msg("status poll failed")
	return o.cfg.PollInterval
}

// confirmStopped re-polls after the recheck delay. True means still stopped.
func (o *Orchestrator) confirmStopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(o.cfg.StopRecheckDelay):
	}
	status, err := o.player.Status(ctx)
	if err != nil {
		return false
	}
	return !status.IsPlaying && status.State != player.StatePaused
}

// handleTransition advances the tracked-current pointer to the item the
// player just auto-advanced into, then pre-queues the one after it.
func (o *Orchestrator) handleTransition(ctx context.Context, position float64, kind string) {
	next, err := o.sched.NextVideo(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("scheduler advance failed")
		return
	}
	if next == nil {
		o.logger.Info().Str("kind", kind).Msg("rotation exhausted, going off air")
		telemetry.SessionsEndedTotal.WithLabelValues("exhausted").Inc()
		o.enterOffAir(ctx)
		return
	}

	o.current = next
	o.lastPosition = position
	o.recordPlay(ctx, *next)
	o.logger.Info().
		Str("kind", kind).
		Str("file", next.Filename).
		Msg("track transition")
	o.broadcastTrackStart(*next)
	o.prequeueFollowing(ctx)
}

// prequeueFollowing pushes the next pending item into the player's native
// playlist so auto-advance is gapless. When nothing remains the off-air
// asset is queued instead.
func (o *Orchestrator) prequeueFollowing(ctx context.Context) {
	following := o.sched.Peek()
	if following != nil {
		if err := o.player.Enqueue(ctx, following.Path); err != nil {
			o.logger.Warn().Err(err).Str("file", following.Filename).Msg("pre-queue failed")
		}
		return
	}
	offAir := o.resolveOffAir(ctx)
	if offAir == nil {
		return
	}
	if err := o.player.Enqueue(ctx, offAir.Path); err != nil {
		o.logger.Warn().Err(err).Msg("off-air pre-queue failed")
	}
}

// StartSession begins a fresh session: loop mode off, first item playing,
// second item pre-queued.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.start")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startSessionLocked(ctx)
}

func (o *Orchestrator) startSessionLocked(ctx context.Context) error {
	if err := o.player.SetLoop(ctx, false); err != nil && !player.IsConnectionError(err) {
		o.logger.Warn().Err(err).Msg("disabling loop mode failed")
	}
	o.offAir = false

	first, err := o.sched.StartSession(ctx)
	if err != nil {
		return err
	}
	if first == nil {
		o.enterOffAir(ctx)
		return nil
	}

	if err := o.player.Play(ctx, first.Path); err != nil {
		endErr := o.sched.EndSession()
		if endErr != nil {
			o.logger.Error().Err(endErr).Msg("session rollback failed")
		}
		return err
	}

	o.current = first
	o.lastPosition = 0
	o.lastPlaying = true
	o.recordPlay(ctx, *first)
	telemetry.SessionsStartedTotal.Inc()
	o.logger.Info().Str("file", first.Filename).Msg("session started")

	o.prequeueFollowing(ctx)
	o.broadcast(events.EventSessionStart, events.Payload{
		"current":  first.Filename,
		"upcoming": o.sched.Upcoming(),
		"session":  o.clock.Snapshot(),
	})
	return nil
}

// PlayNext skips to the next scheduled item.
func (o *Orchestrator) PlayNext(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.next")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	// Without a session there is nothing to skip to; falling through would
	// drain the scheduler's nil result into the off-air fallback.
	if !o.clock.IsActive() {
		return session.ErrSessionInactive
	}

	next, err := o.sched.NextVideo(ctx)
	if err != nil {
		return err
	}
	if next == nil {
		o.enterOffAir(ctx)
		return nil
	}
	if err := o.player.Play(ctx, next.Path); err != nil {
		return err
	}
	o.current = next
	o.lastPosition = 0
	o.lastPlaying = true
	o.recordPlay(ctx, *next)
	o.broadcastTrackStart(*next)
	o.prequeueFollowing(ctx)
	return nil
}

// Pause toggles player pause and broadcasts the resulting state.
func (o *Orchestrator) Pause(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.player.Pause(ctx); err != nil {
		return err
	}
	status, err := o.player.Status(ctx)
	if err != nil {
		return err
	}
	o.lastPlaying = status.IsPlaying
	o.broadcastPlayState(status.IsPlaying)
	return nil
}

// Stop ends the session: player stopped best-effort, clock ended, queue
// discarded.
func (o *Orchestrator) Stop(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.stop")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.player.Stop(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("player stop failed")
	}
	if err := o.sched.EndSession(); err != nil {
		return err
	}
	o.current = nil
	o.offAir = false
	o.lastPosition = 0
	o.lastPlaying = false
	telemetry.SessionsEndedTotal.WithLabelValues("stopped").Inc()
	o.broadcast(events.EventSessionEnd, events.Payload{})
	o.logger.Info().Msg("session stopped")
	return nil
}

// SkipQuotaAndResume suspends today's quota and starts a fresh session,
// exiting off-air if active.
func (o *Orchestrator) SkipQuotaAndResume(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session.skip_quota")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.clock.SkipQuotaForToday(); err != nil {
		return err
	}
	if o.clock.IsActive() {
		if err := o.sched.EndSession(); err != nil {
			return err
		}
	}
	o.offAir = false
	o.current = nil
	return o.startSessionLocked(ctx)
}

// ShuffleQueue reshuffles the pending queue and broadcasts the new order.
func (o *Orchestrator) ShuffleQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sched.ShuffleUpcoming()
	o.broadcast(events.EventQueueUpdate, events.Payload{
		"upcoming": o.sched.Upcoming(),
	})
}

// RefreshLibrary re-partitions the scheduler's media snapshot after a rescan.
func (o *Orchestrator) RefreshLibrary(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sched.RefreshSnapshot(ctx)
}

// Snapshot is the API-facing orchestrator state.
type Snapshot struct {
	OffAir   bool                    `json:"off_air"`
	Current  *schedule.UpcomingItem  `json:"current,omitempty"`
	Upcoming []schedule.UpcomingItem `json:"upcoming"`
	Session  session.Info            `json:"session"`
}

// State returns a point-in-time view for the admin API.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{
		OffAir:   o.offAir,
		Upcoming: o.sched.Upcoming(),
		Session:  o.clock.Snapshot(),
	}
	if o.current != nil {
		snap.Current = &schedule.UpcomingItem{
			ID:          o.current.ID,
			Filename:    o.current.Filename,
			IsInterlude: o.current.IsInterlude(),
		}
	}
	return snap
}

// enterOffAir resolves the fallback asset and loops it. With nothing
// configured the player is simply stopped.
func (o *Orchestrator) enterOffAir(ctx context.Context) {
	offAir := o.resolveOffAir(ctx)
	o.offAir = true
	o.current = nil
	o.lastPosition = 0
	telemetry.OffAirEntriesTotal.Inc()

	if offAir == nil {
		if err := o.player.Stop(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("player stop on off-air failed")
		}
		o.broadcast(events.EventSync, events.Payload{"off_air": true})
		return
	}

	if err := o.player.Play(ctx, offAir.Path); err != nil {
		o.logger.Warn().Err(err).Str("file", offAir.Filename).Msg("off-air playback failed")
	} else if err := o.player.SetLoop(ctx, true); err != nil {
		o.logger.Warn().Err(err).Msg("off-air loop mode failed")
	}
	o.broadcast(events.EventSync, events.Payload{
		"off_air": true,
		"current": offAir.Filename,
	})
	o.logger.Info().Str("file", offAir.Filename).Msg("off air")
}

func (o *Orchestrator) resolveOffAir(ctx context.Context) *models.MediaItem {
	cfg, err := o.settings.Get()
	if err != nil {
		o.logger.Warn().Err(err).Msg("settings read failed resolving off-air asset")
		return nil
	}
	item, err := o.media.GetByID(ctx, cfg.OffAirVideoID)
	if err != nil {
		o.logger.Warn().Err(err).Msg("off-air asset lookup failed")
		return nil
	}
	return item
}

func (o *Orchestrator) recordPlay(ctx context.Context, item models.MediaItem) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordPlay(ctx, item, time.Now()); err != nil {
		o.logger.Warn().Err(err).Str("file", item.Filename).Msg("play history write failed")
	}
}

func (o *Orchestrator) broadcastTrackStart(item models.MediaItem) {
	o.broadcast(events.EventTrackStart, events.Payload{
		"id":           item.ID,
		"filename":     item.Filename,
		"is_interlude": item.IsInterlude(),
		"upcoming":     o.sched.Upcoming(),
	})
}

func (o *Orchestrator) broadcastPlayState(playing bool) {
	if playing {
		o.broadcast(events.EventPlaying, events.Payload{})
		return
	}
	o.broadcast(events.EventPaused, events.Payload{})
}

func (o *Orchestrator) broadcast(eventType events.EventType, payload events.Payload) {
	telemetry.QueueDepth.Set(float64(len(o.sched.Upcoming())))
	if o.bus != nil {
		o.bus.Publish(eventType, payload)
	}
}
