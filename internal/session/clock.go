/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session tracks the active viewing session and the cross-session
// daily watched-minutes quota. The two limits are distinct: the session limit
// bounds content time scheduled into one session, while the daily quota
// accumulates wall-clock minutes across sessions within one quota day. The
// quota day boundary is the configured reset hour, not midnight.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrSessionActive is returned when starting an already active session.
var ErrSessionActive = errors.New("session already active")

// ErrSessionInactive is returned by commands that need a running session.
var ErrSessionInactive = errors.New("no active session")

// ValidationError rejects invalid session parameters before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session parameters: %s", e.Reason)
}

// QuotaState is the persisted cross-session quota accounting.
type QuotaState struct {
	MinutesWatchedToday int
	LastReset           string // quota day "YYYY-MM-DD" of the last rollover
	SkipDate            string // quota day the skip flag covers, "" when unset
}

// Store persists quota state across sessions and process restarts.
type Store interface {
	LoadQuota() (QuotaState, error)
	SaveQuota(QuotaState) error
}

// Clock owns active/inactive session state, elapsed time, and the daily
// watched-minutes quota.
type Clock struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time

	active       bool
	startedAt    time.Time
	limitMinutes int
	resetHour    int
	quota        QuotaState
}

// New creates a session clock backed by the given quota store.
func New(store Store, logger zerolog.Logger) *Clock {
	return NewWithNow(store, logger, time.Now)
}

// NewWithNow creates a clock with a custom time source.
func NewWithNow(store Store, logger zerolog.Logger, now func() time.Time) *Clock {
	return &Clock{
		store:     store,
		logger:    logger.With().Str("component", "session_clock").Logger(),
		now:       now,
		resetHour: 6,
	}
}

// Start transitions the clock to Active. The quota-day rollover runs first:
// a session started before the reset hour still belongs to yesterday's
// quota day.
func (c *Clock) Start(limitMinutes, resetHour int) error {
	if limitMinutes < 0 {
		return &ValidationError{Reason: fmt.Sprintf("limit minutes must be >= 0, got %d", limitMinutes)}
	}
	if resetHour < 0 || resetHour > 23 {
		return &ValidationError{Reason: fmt.Sprintf("reset hour must be within 0-23, got %d", resetHour)}
	}
	if c.active {
		return ErrSessionActive
	}

	quota, err := c.store.LoadQuota()
	if err != nil {
		return fmt.Errorf("load quota state: %w", err)
	}
	c.quota = quota
	c.limitMinutes = limitMinutes
	c.resetHour = resetHour

	if err := c.rollover(); err != nil {
		return err
	}

	c.startedAt = c.now()
	c.active = true
	c.logger.Info().
		Int("limit_minutes", limitMinutes).
		Int("reset_hour", resetHour).
		Int("minutes_watched_today", c.quota.MinutesWatchedToday).
		Msg("session started")
	return nil
}

// End transitions the clock to Inactive and folds the elapsed whole minutes
// into today's watched-minutes total. Ending an inactive clock is a no-op.
func (c *Clock) End() error {
	if !c.active {
		return nil
	}

	watched := int(c.Elapsed() / time.Minute)
	c.quota.MinutesWatchedToday += watched
	c.active = false
	c.startedAt = time.Time{}

	if err := c.store.SaveQuota(c.quota); err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}
	c.logger.Info().
		Int("watched_minutes", watched).
		Int("minutes_watched_today", c.quota.MinutesWatchedToday).
		Msg("session ended")
	return nil
}

// IsActive reports whether a session is running.
func (c *Clock) IsActive() bool {
	return c.active
}

// StartedAt returns the session start time, zero when inactive.
func (c *Clock) StartedAt() time.Time {
	return c.startedAt
}

// Elapsed returns the wall time since session start, zero when inactive.
func (c *Clock) Elapsed() time.Duration {
	if !c.active {
		return 0
	}
	return c.now().Sub(c.startedAt)
}

// Unlimited reports whether the session has no duration limit.
func (c *Clock) Unlimited() bool {
	return c.limitMinutes == 0
}

// LimitMinutes returns the session duration limit, 0 meaning unlimited.
func (c *Clock) LimitMinutes() int {
	return c.limitMinutes
}

// SetLimitMinutes applies a mid-session limit change. Negative values are
// ignored.
func (c *Clock) SetLimitMinutes(limit int) {
	if limit >= 0 {
		c.limitMinutes = limit
	}
}

// Remaining returns the time left in the session. The second return value is
// false when the session is unlimited.
func (c *Clock) Remaining() (time.Duration, bool) {
	if c.limitMinutes == 0 {
		return 0, false
	}
	remaining := time.Duration(c.limitMinutes)*time.Minute - c.Elapsed()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// IsExpired reports whether the session has used up its duration limit.
func (c *Clock) IsExpired() bool {
	return c.limitMinutes > 0 && c.Elapsed() >= time.Duration(c.limitMinutes)*time.Minute
}

// MinutesWatchedToday returns the accumulated minutes of the current quota day.
func (c *Clock) MinutesWatchedToday() int {
	return c.quota.MinutesWatchedToday
}

// RemainingQuota returns the daily quota minutes left, or nil when unlimited.
func (c *Clock) RemainingQuota() *int {
	if c.limitMinutes == 0 {
		return nil
	}
	remaining := c.limitMinutes - c.quota.MinutesWatchedToday
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// QuotaSkipped reports whether the quota is suspended for the current
// quota day.
func (c *Clock) QuotaSkipped() bool {
	return c.quota.SkipDate != "" && c.quota.SkipDate == c.quota.LastReset
}

// QuotaExhausted reports whether today's watched minutes have reached the
// daily quota. Always false when unlimited or when the quota is skipped.
func (c *Clock) QuotaExhausted() bool {
	if c.limitMinutes == 0 || c.QuotaSkipped() {
		return false
	}
	return c.quota.MinutesWatchedToday >= c.limitMinutes
}

// SkipQuotaForToday suspends quota enforcement for the current quota day.
// The flag survives session end and clears only at the next quota-day
// rollover.
func (c *Clock) SkipQuotaForToday() error {
	// Between sessions the persisted state is authoritative: skipping as the
	// first clock operation after a restart must not roll over (and zero) the
	// stored watched minutes.
	if !c.active {
		quota, err := c.store.LoadQuota()
		if err != nil {
			return fmt.Errorf("load quota state: %w", err)
		}
		c.quota = quota
	}
	if err := c.rollover(); err != nil {
		return err
	}
	c.quota.SkipDate = c.quota.LastReset
	if err := c.store.SaveQuota(c.quota); err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}
	c.logger.Info().Str("quota_day", c.quota.SkipDate).Msg("daily quota skipped")
	return nil
}

// Info is a point-in-time snapshot of session state for the admin API.
type Info struct {
	IsActive            bool       `json:"is_active"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	LimitMinutes        int        `json:"limit_minutes"`
	ResetHour           int        `json:"reset_hour"`
	ElapsedMS           int64      `json:"elapsed_ms"`
	RemainingMS         *int64     `json:"remaining_ms,omitempty"` // nil = unlimited
	IsExpired           bool       `json:"is_expired"`
	MinutesWatchedToday int        `json:"minutes_watched_today"`
	DailyQuotaRemaining *int       `json:"daily_quota_remaining,omitempty"` // nil = unlimited
	QuotaSkipped        bool       `json:"quota_skipped"`
}

// Snapshot returns the current session info.
func (c *Clock) Snapshot() Info {
	info := Info{
		IsActive:            c.active,
		LimitMinutes:        c.limitMinutes,
		ResetHour:           c.resetHour,
		ElapsedMS:           c.Elapsed().Milliseconds(),
		IsExpired:           c.IsExpired(),
		MinutesWatchedToday: c.quota.MinutesWatchedToday,
		DailyQuotaRemaining: c.RemainingQuota(),
		QuotaSkipped:        c.QuotaSkipped(),
	}
	if c.active {
		started := c.startedAt
		info.StartedAt = &started
	}
	if remaining, limited := c.Remaining(); limited {
		ms := remaining.Milliseconds()
		info.RemainingMS = &ms
	}
	return info
}

// rollover re-anchors quota accounting to the current quota day. A changed
// quota day zeroes watched minutes and clears the skip flag.
func (c *Clock) rollover() error {
	day := quotaDay(c.now(), c.resetHour)
	if c.quota.LastReset == day {
		return nil
	}
	c.quota.MinutesWatchedToday = 0
	c.quota.SkipDate = ""
	c.quota.LastReset = day
	if err := c.store.SaveQuota(c.quota); err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}
	c.logger.Debug().Str("quota_day", day).Msg("quota day rolled over")
	return nil
}

// quotaDay maps a wall-clock instant to its quota day: times before the
// reset hour belong to the previous calendar day.
func quotaDay(now time.Time, resetHour int) string {
	if now.Hour() >= resetHour {
		return now.Format("2006-01-02")
	}
	return now.AddDate(0, 0, -1).Format("2006-01-02")
}
