/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// MediaType classifies a library asset.
type MediaType string

const (
	MediaTypeVideo     MediaType = "video"
	MediaTypeInterlude MediaType = "interlude"
	MediaTypeIntro     MediaType = "intro"
	MediaTypeOutro     MediaType = "outro"
	MediaTypeOffAir    MediaType = "offair"
)

// MediaItem is a playable video asset in the library.
type MediaItem struct {
	ID              string    `gorm:"type:uuid;primaryKey" json:"id"`
	Path            string    `gorm:"uniqueIndex" json:"path"`
	Filename        string    `gorm:"index" json:"filename"`
	DurationSeconds float64   `json:"duration_seconds"`
	MediaType       MediaType `gorm:"type:varchar(16);index" json:"media_type"`
	DateStart       *string   `gorm:"type:varchar(5)" json:"date_start,omitempty"` // "MM-DD"; nil means no seasonal window
	DateEnd         *string   `gorm:"type:varchar(5)" json:"date_end,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsInterlude reports whether the item is an interlude asset.
func (m MediaItem) IsInterlude() bool {
	return m.MediaType == MediaTypeInterlude
}

// ActiveOn reports whether the item's seasonal window covers today ("MM-DD").
func (m MediaItem) ActiveOn(today string) bool {
	var start, end string
	if m.DateStart != nil {
		start = *m.DateStart
	}
	if m.DateEnd != nil {
		end = *m.DateEnd
	}
	return IsSeasonalActive(start, end, today)
}

// IsSeasonalActive evaluates a [start, end] "MM-DD" window against today.
// An empty start or end means the item has no seasonal restriction. A window
// whose start sorts after its end wraps the year boundary (e.g. 12-01..02-28).
// Comparisons are lexicographic on zero-padded MM-DD strings, which orders
// the same as the calendar.
func IsSeasonalActive(start, end, today string) bool {
	if start == "" || end == "" {
		return true
	}
	if start <= end {
		return start <= today && today <= end
	}
	return today >= start || today <= end
}

// PlayHistory stores executed playback events.
type PlayHistory struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	MediaID   string    `gorm:"type:uuid;index" json:"media_id"`
	Filename  string    `json:"filename"`
	MediaType MediaType `gorm:"type:varchar(16)" json:"media_type"`
	StartedAt time.Time `gorm:"index" json:"started_at"`
}
