/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package settings provides the runtime settings service over the singleton
// system_settings row. The scheduler re-reads it on every queue top-up so
// mid-session edits take effect without a restart.
package settings

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/session"
)

// Service reads and writes runtime settings.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a settings service.
func New(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// Get retrieves the singleton settings row, creating it if absent.
func (s *Service) Get() (*models.SystemSettings, error) {
	var settings models.SystemSettings
	if err := s.db.FirstOrCreate(&settings, models.SystemSettings{ID: 1}).Error; err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}
	return &settings, nil
}

// Update validates and persists new settings values. Quota accounting fields
// are owned by the session clock and preserved as-is.
func (s *Service) Update(updated *models.SystemSettings) (*models.SystemSettings, error) {
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get()
	if err != nil {
		return nil, err
	}

	current.SessionLimitMinutes = updated.SessionLimitMinutes
	current.ResetHour = updated.ResetHour
	current.IntroVideoID = updated.IntroVideoID
	current.OutroVideoID = updated.OutroVideoID
	current.OffAirVideoID = updated.OffAirVideoID
	current.InterludeEnabled = updated.InterludeEnabled
	current.InterludeFrequency = updated.InterludeFrequency

	if err := s.db.Save(current).Error; err != nil {
		return nil, fmt.Errorf("save system settings: %w", err)
	}
	s.logger.Info().
		Int("limit_minutes", current.SessionLimitMinutes).
		Int("interlude_frequency", current.InterludeFrequency).
		Msg("settings updated")
	return current, nil
}

// LoadQuota implements session.Store.
func (s *Service) LoadQuota() (session.QuotaState, error) {
	settings, err := s.Get()
	if err != nil {
		return session.QuotaState{}, err
	}
	return session.QuotaState{
		MinutesWatchedToday: settings.MinutesWatchedToday,
		LastReset:           settings.LastQuotaReset,
		SkipDate:            settings.QuotaSkipDate,
	}, nil
}

// SaveQuota implements session.Store.
func (s *Service) SaveQuota(state session.QuotaState) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.MinutesWatchedToday = state.MinutesWatchedToday
	settings.LastQuotaReset = state.LastReset
	settings.QuotaSkipDate = state.SkipDate
	if err := s.db.Save(settings).Error; err != nil {
		return fmt.Errorf("save quota state: %w", err)
	}
	return nil
}
