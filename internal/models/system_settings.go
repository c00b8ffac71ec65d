/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"time"
)

// SystemSettings stores runtime-configurable playback settings.
// Uses singleton pattern with a fixed ID=1 row.
type SystemSettings struct {
	ID                  int    `gorm:"primaryKey" json:"-"`
	SessionLimitMinutes int    `gorm:"default:120" json:"session_limit_minutes"` // 0 = unlimited
	ResetHour           int    `gorm:"default:6" json:"reset_hour"`              // quota day boundary hour, 0-23
	IntroVideoID        string `gorm:"type:uuid" json:"intro_video_id"`
	OutroVideoID        string `gorm:"type:uuid" json:"outro_video_id"`
	OffAirVideoID       string `gorm:"type:uuid" json:"offair_video_id"`
	InterludeEnabled    bool   `gorm:"default:true" json:"interlude_enabled"`
	InterludeFrequency  int    `gorm:"default:3" json:"interlude_frequency"` // regular videos between interludes

	// Daily quota accounting. Persisted so watched minutes survive restarts.
	MinutesWatchedToday int    `json:"minutes_watched_today"`
	LastQuotaReset      string `gorm:"type:varchar(10)" json:"last_quota_reset"` // quota day "YYYY-MM-DD"
	QuotaSkipDate       string `gorm:"type:varchar(10)" json:"quota_skip_date"`  // quota day the skip flag covers

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (SystemSettings) TableName() string {
	return "system_settings"
}

// Validate rejects settings that would corrupt session accounting.
func (s *SystemSettings) Validate() error {
	if s.SessionLimitMinutes < 0 {
		return fmt.Errorf("session limit must be >= 0 minutes, got %d", s.SessionLimitMinutes)
	}
	if s.ResetHour < 0 || s.ResetHour > 23 {
		return fmt.Errorf("reset hour must be within 0-23, got %d", s.ResetHour)
	}
	if s.InterludeFrequency < 1 {
		return fmt.Errorf("interlude frequency must be >= 1, got %d", s.InterludeFrequency)
	}
	return nil
}
