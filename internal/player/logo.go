/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// UpdateLogo displays the configured overlay through the in-player logo
// script. The source image is pre-scaled down to the configured height cap
// first, bounding decode cost on constrained hardware. Every failure in this
// path degrades to "no overlay"; playback must never stall on cosmetics.
func (m *MPV) UpdateLogo(ctx context.Context, cfg LogoConfig) error {
	if !cfg.Enabled || cfg.Path == "" {
		_, err := m.command(ctx, "script-message-to", "logo", "hide")
		if err != nil && !IsConnectionError(err) {
			m.logger.Warn().Err(err).Msg("logo hide failed")
			return nil
		}
		return err
	}

	path, err := m.prescaleLogo(cfg)
	if err != nil {
		m.logger.Warn().Err(err).Str("logo", cfg.Path).Msg("logo prescale failed, skipping overlay")
		return nil
	}

	_, err = m.command(ctx, "script-message-to", "logo", "show",
		path,
		cfg.Align,
		fmt.Sprintf("%d", cfg.OffsetX),
		fmt.Sprintf("%d", cfg.OffsetY),
		fmt.Sprintf("%.2f", cfg.Opacity),
	)
	if err != nil && !IsConnectionError(err) {
		m.logger.Warn().Err(err).Msg("logo overlay rejected, continuing without it")
		return nil
	}
	return err
}

// prescaleLogo resizes the overlay source to at most MaxHeight pixels tall,
// preserving aspect ratio, and writes the result next to the runtime socket
// state. Returns the original path untouched when it already fits.
func (m *MPV) prescaleLogo(cfg LogoConfig) (string, error) {
	img, err := imaging.Open(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("open logo: %w", err)
	}
	maxHeight := cfg.MaxHeight
	if maxHeight <= 0 {
		maxHeight = 120
	}
	if img.Bounds().Dy() <= maxHeight {
		return cfg.Path, nil
	}

	scaled := imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
	out := filepath.Join(os.TempDir(), "hearthtv-logo.png")
	if err := imaging.Save(scaled, out); err != nil {
		return "", fmt.Errorf("save scaled logo: %w", err)
	}
	return out, nil
}
