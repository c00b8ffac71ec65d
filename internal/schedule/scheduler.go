/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule builds and refills the upcoming-playback queue from a
// cached media snapshot, the shuffle deck, and the session clock's limits.
//
// The scheduler is not safe for concurrent use on its own. The playback
// orchestrator is its single owner and serializes every call behind its
// command mutex.
package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/hearth_tv/internal/deck"
	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/session"
)

// defaultBufferSize is how many pending items an unlimited session keeps
// queued.
const defaultBufferSize = 5

// maxFillIterations bounds one fill pass against misconfiguration.
const maxFillIterations = 50

// Repository is the read side of the media index.
type Repository interface {
	GetAll(ctx context.Context) ([]models.MediaItem, error)
	GetInterludes(ctx context.Context, today string) ([]models.MediaItem, error)
}

// ConfigSource supplies live runtime settings. Settings are re-read on every
// queue top-up so mid-session edits take effect without a restart.
type ConfigSource interface {
	Get() (*models.SystemSettings, error)
}

// QueueState is the scheduler-owned queue bookkeeping.
type QueueState struct {
	queue               []models.MediaItem
	showsSinceInterlude int
	videosPlayed        int
	isQueueComplete     bool
	builtDuration       float64 // seconds of content scheduled so far, intro excluded
}

// UpcomingItem is the event-facing view of one queued item.
type UpcomingItem struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	IsInterlude bool   `json:"is_interlude"`
}

// Scheduler owns the upcoming queue for one session at a time.
type Scheduler struct {
	repo     Repository
	settings ConfigSource
	clock    *session.Clock
	logger   zerolog.Logger
	rng      *rand.Rand
	now      func() time.Time

	cards      *deck.Deck[models.MediaItem]
	interludes []models.MediaItem
	specials   map[string]models.MediaItem
	bufferSize int

	state QueueState

	limitMinutes       int
	resetHour          int
	introVideoID       string
	outroVideoID       string
	interludeEnabled   bool
	interludeFrequency int
}

// New creates a scheduler.
func New(repo Repository, settings ConfigSource, clock *session.Clock, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		repo:       repo,
		settings:   settings,
		clock:      clock,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		specials:   map[string]models.MediaItem{},
		bufferSize: defaultBufferSize,
	}
}

// SetBufferSize overrides the unlimited-session queue depth. Values below 1
// are ignored.
func (s *Scheduler) SetBufferSize(n int) {
	if n >= 1 {
		s.bufferSize = n
	}
}

// NewWithSeed creates a scheduler with deterministic randomness and a fixed
// time source. Test constructor.
func NewWithSeed(repo Repository, settings ConfigSource, clock *session.Clock, logger zerolog.Logger, seed int64, now func() time.Time) *Scheduler {
	s := New(repo, settings, clock, logger)
	s.rng = rand.New(rand.NewSource(seed))
	s.now = now
	return s
}

// StartSession refreshes the media snapshot, resets queue state, builds a
// fresh shuffle deck, starts the session clock, fills the queue, and returns
// the first item to play. Returns nil when nothing at all is playable.
func (s *Scheduler) StartSession(ctx context.Context) (*models.MediaItem, error) {
	if s.clock.IsActive() {
		return nil, session.ErrSessionActive
	}
	if err := s.reloadConfig(); err != nil {
		return nil, err
	}
	if err := s.RefreshSnapshot(ctx); err != nil {
		return nil, err
	}

	s.state = QueueState{}
	if err := s.clock.Start(s.limitMinutes, s.resetHour); err != nil {
		return nil, err
	}

	s.fillQueue()
	first := s.popNext()
	if first == nil {
		if err := s.clock.End(); err != nil {
			return nil, err
		}
		s.logger.Warn().Msg("session started with empty library")
		return nil, nil
	}
	s.logger.Info().
		Str("first", first.Filename).
		Int("queued", len(s.state.queue)).
		Msg("session queue built")
	return first, nil
}

// NextVideo returns the next item to play, topping the queue up first.
// Returns nil without error when the session is inactive or, for a finite
// session, when the queue has been fully served — in which case the session
// clock is ended as a side effect.
func (s *Scheduler) NextVideo(ctx context.Context) (*models.MediaItem, error) {
	if !s.clock.IsActive() {
		return nil, nil
	}
	if err := s.reloadConfig(); err != nil {
		return nil, err
	}

	if len(s.state.queue) == 0 && s.state.isQueueComplete {
		if err := s.clock.End(); err != nil {
			return nil, err
		}
		s.logger.Info().Int("videos_played", s.state.videosPlayed).Msg("queue exhausted, session ended")
		return nil, nil
	}

	s.fillQueue()
	return s.popNext(), nil
}

// Peek tops the queue up and returns the head without removing it. Used for
// pre-queueing into the player's native playlist. Returns nil when nothing
// remains.
func (s *Scheduler) Peek() *models.MediaItem {
	if !s.clock.IsActive() {
		return nil
	}
	s.fillQueue()
	if len(s.state.queue) == 0 {
		return nil
	}
	head := s.state.queue[0]
	return &head
}

// ShuffleUpcoming discards every not-yet-played queued item, reshuffles the
// deck, and rebuilds the queue. The currently playing item is unaffected; the
// scheduler only ever tracks upcoming items.
func (s *Scheduler) ShuffleUpcoming() {
	if !s.clock.IsActive() {
		return
	}
	for _, item := range s.state.queue {
		// Bumpers never counted toward the built duration, so discarding
		// them must not refund budget either.
		switch item.MediaType {
		case models.MediaTypeIntro, models.MediaTypeOutro:
		default:
			s.state.builtDuration -= item.DurationSeconds
		}
	}
	if s.state.builtDuration < 0 {
		s.state.builtDuration = 0
	}
	s.state.queue = nil
	s.state.isQueueComplete = false
	s.cards.Reshuffle()
	s.fillQueue()
	s.logger.Info().Int("queued", len(s.state.queue)).Msg("upcoming queue reshuffled")
}

// EndSession discards queue state and stops the session clock.
func (s *Scheduler) EndSession() error {
	s.state = QueueState{}
	return s.clock.End()
}

// Upcoming returns the event-facing snapshot of the pending queue.
func (s *Scheduler) Upcoming() []UpcomingItem {
	upcoming := make([]UpcomingItem, 0, len(s.state.queue))
	for _, item := range s.state.queue {
		upcoming = append(upcoming, UpcomingItem{
			ID:          item.ID,
			Filename:    item.Filename,
			IsInterlude: item.IsInterlude(),
		})
	}
	return upcoming
}

// VideosPlayed returns the lifetime pop counter for the session.
func (s *Scheduler) VideosPlayed() int {
	return s.state.videosPlayed
}

// RefreshSnapshot re-partitions the media index into regular videos, the
// seasonally eligible interlude pool, and id-addressable specials. Called at
// session start and on an explicit rescan signal, never implicitly.
func (s *Scheduler) RefreshSnapshot(ctx context.Context) error {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load media snapshot: %w", err)
	}
	today := s.now().Format("01-02")
	interludes, err := s.repo.GetInterludes(ctx, today)
	if err != nil {
		return fmt.Errorf("load interlude pool: %w", err)
	}

	var regular []models.MediaItem
	specials := map[string]models.MediaItem{}
	for _, item := range all {
		switch item.MediaType {
		case models.MediaTypeVideo:
			regular = append(regular, item)
		case models.MediaTypeIntro, models.MediaTypeOutro:
			specials[item.ID] = item
		}
	}

	s.interludes = interludes
	s.specials = specials
	if s.cards == nil {
		s.cards = deck.NewWithRand(regular, s.rng)
	} else {
		s.cards.SetItems(regular)
	}

	s.logger.Debug().
		Int("videos", len(regular)).
		Int("interludes", len(interludes)).
		Int("specials", len(specials)).
		Msg("media snapshot refreshed")
	return nil
}

// reloadConfig pulls live settings and pushes the limit into the clock so
// mid-session edits apply on the next top-up.
func (s *Scheduler) reloadConfig() error {
	cfg, err := s.settings.Get()
	if err != nil {
		return fmt.Errorf("load runtime settings: %w", err)
	}
	s.limitMinutes = cfg.SessionLimitMinutes
	s.resetHour = cfg.ResetHour
	s.introVideoID = cfg.IntroVideoID
	s.outroVideoID = cfg.OutroVideoID
	s.interludeEnabled = cfg.InterludeEnabled
	s.interludeFrequency = cfg.InterludeFrequency
	if s.clock.IsActive() {
		s.clock.SetLimitMinutes(cfg.SessionLimitMinutes)
	}
	return nil
}

// infinite reports whether the session has no duration budget: either no
// limit is configured or today's quota has been explicitly skipped.
func (s *Scheduler) infinite() bool {
	return s.limitMinutes == 0 || s.clock.QuotaSkipped()
}

// fillQueue grows the pending queue until one of its stop conditions fires.
//
// Ordering matters: the interlude due-check runs before the finite-budget
// stop so that an interlude owed after the last drawn video still makes it
// into the queue ahead of the outro. The intro never counts against the
// duration budget.
func (s *Scheduler) fillQueue() {
	limitSeconds := float64(s.limitMinutes) * 60

	for iterations := 0; ; iterations++ {
		if s.state.isQueueComplete {
			return
		}
		if s.infinite() && len(s.state.queue) >= s.bufferSize {
			return
		}
		if iterations >= maxFillIterations {
			s.logger.Warn().Msg("fill iteration cap reached")
			return
		}

		// Brand-new session: lead with the intro when one resolves. Does not
		// consume the deck.
		if s.state.videosPlayed == 0 && len(s.state.queue) == 0 {
			if intro, ok := s.resolveSpecial(s.introVideoID); ok {
				s.state.queue = append(s.state.queue, intro)
				continue
			}
		}

		if s.cards.Size() == 0 {
			s.state.isQueueComplete = true
			return
		}

		if s.interludeDue() {
			pick := s.interludes[s.rng.Intn(len(s.interludes))]
			s.state.queue = append(s.state.queue, pick)
			s.state.builtDuration += pick.DurationSeconds
			continue
		}

		if !s.infinite() && s.state.builtDuration > limitSeconds {
			if outro, ok := s.resolveSpecial(s.outroVideoID); ok {
				s.state.queue = append(s.state.queue, outro)
			}
			s.state.isQueueComplete = true
			return
		}

		item, ok := s.cards.Draw()
		if !ok {
			return
		}
		s.state.queue = append(s.state.queue, item)
		s.state.builtDuration += item.DurationSeconds
	}
}

// interludeDue replays the pending queue on top of the actually-played
// counter: a queued interlude resets the virtual count, a queued regular
// video increments it. Intro and outro entries are neutral.
func (s *Scheduler) interludeDue() bool {
	if !s.interludeEnabled || s.interludeFrequency < 1 || len(s.interludes) == 0 {
		return false
	}
	virtual := s.state.showsSinceInterlude
	for _, item := range s.state.queue {
		switch item.MediaType {
		case models.MediaTypeInterlude:
			virtual = 0
		case models.MediaTypeVideo:
			virtual++
		}
	}
	return virtual >= s.interludeFrequency
}

// popNext removes and returns the queue head, maintaining the played and
// shows-since-interlude counters.
func (s *Scheduler) popNext() *models.MediaItem {
	if len(s.state.queue) == 0 {
		return nil
	}
	item := s.state.queue[0]
	s.state.queue = s.state.queue[1:]
	s.state.videosPlayed++
	if item.IsInterlude() {
		s.state.showsSinceInterlude = 0
	} else {
		s.state.showsSinceInterlude++
	}
	return &item
}

// resolveSpecial looks an intro/outro id up in the snapshot.
func (s *Scheduler) resolveSpecial(id string) (models.MediaItem, bool) {
	if id == "" {
		return models.MediaItem{}, false
	}
	item, ok := s.specials[id]
	return item, ok
}
