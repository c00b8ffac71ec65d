/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player talks to an external video player process over its control
// socket. Two wire implementations exist behind one contract: an mpv JSON IPC
// client over a unix domain socket, and a VLC remote-control client over TCP.
package player

import (
	"context"
	"time"
)

// State is the coarse player state derived from a status poll.
type State string

const (
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// Status is a point-in-time playback snapshot. Produced fresh on every poll
// and never cached beyond one loop iteration.
type Status struct {
	IsPlaying       bool
	State           State
	CurrentFile     string
	PositionSeconds float64
	DurationSeconds float64
}

// LogoConfig describes the on-screen overlay.
type LogoConfig struct {
	Enabled   bool
	Path      string
	MaxHeight int
	Align     string // top-left, top-right, bottom-left, bottom-right
	OffsetX   int
	OffsetY   int
	Opacity   float64
}

// Controller is the capability contract both wire clients implement.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Play(ctx context.Context, path string) error
	Enqueue(ctx context.Context, path string) error
	Clear(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	SetLoop(ctx context.Context, enabled bool) error
	Status(ctx context.Context) (Status, error)
	UpdateLogo(ctx context.Context, cfg LogoConfig) error
}

// Options is shared dial configuration for both clients.
type Options struct {
	ConnectAttempts int
	ConnectDelay    time.Duration
	RequestTimeout  time.Duration
}

// DefaultOptions returns conservative dial settings.
func DefaultOptions() Options {
	return Options{
		ConnectAttempts: 5,
		ConnectDelay:    2 * time.Second,
		RequestTimeout:  5 * time.Second,
	}
}
