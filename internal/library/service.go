/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library provides read access to the media index and keeps it in
// sync with the on-disk collection. Playback code never writes here; writes
// happen through manifest imports and the rescan path only.
package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_tv/internal/models"
)

// Service is the media repository.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates a library service.
func New(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "library").Logger(),
	}
}

// GetAll returns every media item in the index.
func (s *Service) GetAll(ctx context.Context) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := s.db.WithContext(ctx).Order("filename ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load media items: %w", err)
	}
	return items, nil
}

// GetInterludes returns interludes whose seasonal window covers today
// ("MM-DD"). Items without a window are always eligible.
func (s *Service) GetInterludes(ctx context.Context, today string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := s.db.WithContext(ctx).
		Where("media_type = ?", models.MediaTypeInterlude).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load interludes: %w", err)
	}

	eligible := items[:0]
	for _, item := range items {
		if item.ActiveOn(today) {
			eligible = append(eligible, item)
		}
	}
	return eligible, nil
}

// GetByType returns the singleton item of a special type (intro, outro,
// offair), or nil when none exists.
func (s *Service) GetByType(ctx context.Context, mediaType models.MediaType) (*models.MediaItem, error) {
	var item models.MediaItem
	err := s.db.WithContext(ctx).
		Where("media_type = ?", mediaType).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s item: %w", mediaType, err)
	}
	return &item, nil
}

// RecordPlay appends a play-history row for the item.
func (s *Service) RecordPlay(ctx context.Context, item models.MediaItem, startedAt time.Time) error {
	row := models.PlayHistory{
		ID:        uuid.NewString(),
		MediaID:   item.ID,
		Filename:  item.Filename,
		MediaType: item.MediaType,
		StartedAt: startedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record play: %w", err)
	}
	return nil
}

// RecentPlays returns the newest history rows, capped at limit.
func (s *Service) RecentPlays(ctx context.Context, limit int) ([]models.PlayHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.PlayHistory
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load play history: %w", err)
	}
	return rows, nil
}

// GetByID returns a media item by id, or nil when absent.
func (s *Service) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	if id == "" {
		return nil, nil
	}
	var item models.MediaItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load media item %s: %w", id, err)
	}
	return &item, nil
}
