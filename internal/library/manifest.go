/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_tv/internal/models"
	"github.com/friendsincode/hearth_tv/internal/telemetry"
)

// Manifest is the top-level JSON structure produced by mediascan.
type Manifest struct {
	Version   int           `json:"version"`
	ScannedAt time.Time     `json:"scanned_at"`
	RootDir   string        `json:"root_dir"`
	Files     []FileEntry   `json:"files"`
	Stats     ManifestStats `json:"stats"`
}

// FileEntry describes a single scanned media file.
type FileEntry struct {
	Path            string           `json:"path"`
	Filename        string           `json:"filename"`
	MediaType       models.MediaType `json:"media_type"`
	DurationSeconds float64          `json:"duration_seconds"`
	DateStart       *string          `json:"date_start,omitempty"`
	DateEnd         *string          `json:"date_end,omitempty"`
	Size            int64            `json:"size"`
	ModifiedAt      time.Time        `json:"modified_at"`
}

// ManifestStats holds aggregate scan statistics.
type ManifestStats struct {
	TotalFiles      int     `json:"total_files"`
	TotalSize       int64   `json:"total_size"`
	Errors          int     `json:"errors"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ReadManifest loads a manifest file from disk.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// ImportResult summarizes a manifest import.
type ImportResult struct {
	Created int
	Updated int
	Pruned  int
}

// ImportManifest upserts manifest entries into the index by path and prunes
// rows whose files no longer appear in the manifest.
func (s *Service) ImportManifest(ctx context.Context, manifest *Manifest) (ImportResult, error) {
	var result ImportResult
	seen := make(map[string]struct{}, len(manifest.Files))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range manifest.Files {
			seen[entry.Path] = struct{}{}

			var existing models.MediaItem
			err := tx.Where("path = ?", entry.Path).First(&existing).Error
			switch {
			case err == nil:
				existing.Filename = entry.Filename
				existing.MediaType = entry.MediaType
				existing.DurationSeconds = entry.DurationSeconds
				existing.DateStart = entry.DateStart
				existing.DateEnd = entry.DateEnd
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("update %s: %w", entry.Path, err)
				}
				result.Updated++
			case errors.Is(err, gorm.ErrRecordNotFound):
				item := models.MediaItem{
					ID:              uuid.NewString(),
					Path:            entry.Path,
					Filename:        entry.Filename,
					MediaType:       entry.MediaType,
					DurationSeconds: entry.DurationSeconds,
					DateStart:       entry.DateStart,
					DateEnd:         entry.DateEnd,
				}
				if err := tx.Create(&item).Error; err != nil {
					return fmt.Errorf("create %s: %w", entry.Path, err)
				}
				result.Created++
			default:
				return fmt.Errorf("lookup %s: %w", entry.Path, err)
			}
		}

		var stale []models.MediaItem
		if err := tx.Find(&stale).Error; err != nil {
			return err
		}
		for _, item := range stale {
			if _, ok := seen[item.Path]; ok {
				continue
			}
			if err := tx.Delete(&models.MediaItem{}, "id = ?", item.ID).Error; err != nil {
				return fmt.Errorf("prune %s: %w", item.Path, err)
			}
			result.Pruned++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.RefreshMetrics(ctx)
	s.logger.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("pruned", result.Pruned).
		Msg("manifest imported")
	return result, nil
}

// RefreshMetrics refreshes the per-type library size gauge.
func (s *Service) RefreshMetrics(ctx context.Context) {
	var rows []struct {
		MediaType models.MediaType
		Count     int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Select("media_type, count(*) as count").
		Group("media_type").
		Scan(&rows).Error
	if err != nil {
		s.logger.Debug().Err(err).Msg("library gauge refresh failed")
		return
	}
	telemetry.LibraryItems.Reset()
	for _, row := range rows {
		telemetry.LibraryItems.WithLabelValues(string(row.MediaType)).Set(float64(row.Count))
	}
}
