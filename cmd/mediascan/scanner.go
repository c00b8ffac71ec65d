/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/friendsincode/hearth_tv/internal/library"
	"github.com/friendsincode/hearth_tv/internal/models"
)

// seasonalTag matches a "(MM-DD..MM-DD)" window in a filename.
var seasonalTag = regexp.MustCompile(`\((\d{2}-\d{2})\.\.(\d{2}-\d{2})\)`)

type scanJob struct {
	fullPath string
	info     os.FileInfo
}

type scanResult struct {
	entry library.FileEntry
	err   error
}

type scanner struct {
	root    string
	workers int
	noProbe bool
}

func (s *scanner) scan(ctx context.Context) (*library.Manifest, error) {
	startTime := time.Now()

	manifest := &library.Manifest{
		Version:   1,
		ScannedAt: startTime.UTC(),
		RootDir:   s.root,
	}

	jobs := make(chan scanJob, s.workers*2)
	results := make(chan scanResult, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				entry, err := s.processFile(ctx, job)
				results <- scanResult{entry: entry, err: err}
			}
		}()
	}

	var entries []library.FileEntry
	var totalSize int64
	var errCount int
	var collectDone sync.WaitGroup
	collectDone.Add(1)
	go func() {
		defer collectDone.Done()
		for r := range results {
			if r.err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", r.err)
				errCount++
				continue
			}
			entries = append(entries, r.entry)
			totalSize += r.entry.Size
		}
	}()

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
			errCount++
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if info.IsDir() {
			return nil
		}
		if !isVideoFile(info.Name()) {
			return nil
		}
		jobs <- scanJob{fullPath: path, info: info}
		return nil
	})
	if err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "warning: walk %s: %v\n", s.root, err)
	}

	close(jobs)
	wg.Wait()
	close(results)
	collectDone.Wait()

	manifest.Files = entries
	manifest.Stats = library.ManifestStats{
		TotalFiles:      len(entries),
		TotalSize:       totalSize,
		Errors:          errCount,
		DurationSeconds: time.Since(startTime).Seconds(),
	}
	return manifest, nil
}

func (s *scanner) processFile(ctx context.Context, job scanJob) (library.FileEntry, error) {
	entry := library.FileEntry{
		Path:       job.fullPath,
		Filename:   filepath.Base(job.fullPath),
		MediaType:  classify(s.root, job.fullPath),
		Size:       job.info.Size(),
		ModifiedAt: job.info.ModTime().UTC(),
	}

	if start, end, ok := parseSeasonalWindow(entry.Filename); ok {
		entry.DateStart = &start
		entry.DateEnd = &end
	}

	if !s.noProbe {
		duration, err := probeDuration(ctx, job.fullPath)
		if err != nil {
			return library.FileEntry{}, fmt.Errorf("%s: %w", job.fullPath, err)
		}
		entry.DurationSeconds = duration
	}
	return entry, nil
}

// classify maps the first path segment under the root to a media type.
// Anything outside the known subdirectories counts as a regular video.
func classify(root, fullPath string) models.MediaType {
	rel, err := filepath.Rel(root, fullPath)
	if err != nil {
		return models.MediaTypeVideo
	}
	segment := rel
	if idx := strings.IndexRune(rel, filepath.Separator); idx >= 0 {
		segment = rel[:idx]
	}
	switch strings.ToLower(segment) {
	case "interludes":
		return models.MediaTypeInterlude
	case "intro":
		return models.MediaTypeIntro
	case "outro":
		return models.MediaTypeOutro
	case "offair":
		return models.MediaTypeOffAir
	default:
		return models.MediaTypeVideo
	}
}

// parseSeasonalWindow extracts a "(MM-DD..MM-DD)" tag from a filename.
func parseSeasonalWindow(filename string) (start, end string, ok bool) {
	match := seasonalTag.FindStringSubmatch(filename)
	if match == nil {
		return "", "", false
	}
	return match[1], match[2], true
}

// probeDuration asks ffprobe for the container duration.
func probeDuration(ctx context.Context, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("no duration reported")
	}
	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func isVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".mp4", ".mkv", ".avi", ".mov", ".m4v", ".webm", ".ts", ".mpg", ".mpeg", ".wmv":
		return true
	default:
		return false
	}
}
