/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// vlcSettleDelay is how long the client waits after sending a command before
// draining whatever output accumulated. The RC protocol has no response
// framing or correlation at all.
const vlcSettleDelay = 150 * time.Millisecond

var (
	vlcIntPattern   = regexp.MustCompile(`\d+`)
	vlcInputPattern = regexp.MustCompile(`\( new input: (?:file://)?([^ )]+)`)
)

// VLC is the line-text remote-control client over TCP. Commands are not
// correlated with responses, so callers must serialize: one command, one
// settle-and-drain, before the next. The playback orchestrator is the only
// caller and already runs single file behind its command mutex.
type VLC struct {
	addr   string
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

// NewVLC creates a VLC remote-control client for the given TCP address.
func NewVLC(addr string, opts Options, logger zerolog.Logger) *VLC {
	return &VLC{
		addr:   addr,
		opts:   opts,
		logger: logger.With().Str("component", "vlc_client").Logger(),
	}
}

// Connect dials the RC port, retrying up to the configured attempt count.
func (v *VLC) Connect(ctx context.Context) error {
	v.mu.Lock()
	if v.connected {
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= v.opts.ConnectAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", v.addr, v.opts.RequestTimeout)
		if err == nil {
			v.mu.Lock()
			v.conn = conn
			v.connected = true
			v.mu.Unlock()
			// Swallow the greeting banner.
			v.drain(conn)
			v.logger.Info().Str("addr", v.addr).Msg("connected to vlc")
			return nil
		}
		lastErr = err
		v.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", v.opts.ConnectAttempts).
			Msg("vlc connect failed")

		if attempt < v.opts.ConnectAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(v.opts.ConnectDelay):
			}
		}
	}
	return &ConnectionError{Addr: v.addr, Err: lastErr}
}

// Disconnect closes the control connection.
func (v *VLC) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conn == nil {
		return nil
	}
	err := v.conn.Close()
	v.conn = nil
	v.connected = false
	return err
}

// send writes one command line, waits the settle delay, then returns whatever
// output accumulated. Absence of expected text reads as a zero default at the
// parse layer, never as an error.
func (v *VLC) send(ctx context.Context, command string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected || v.conn == nil {
		return "", ErrNotConnected
	}

	if _, err := v.conn.Write([]byte(command + "\n")); err != nil {
		v.connected = false
		return "", &ConnectionError{Addr: v.addr, Err: err}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(vlcSettleDelay):
	}
	return v.drain(v.conn), nil
}

// drain reads buffered output until a short read deadline trips.
func (v *VLC) drain(conn net.Conn) string {
	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		n, err := conn.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	_ = conn.SetReadDeadline(time.Time{})
	return out.String()
}

// Play replaces the playlist with path and starts playback.
func (v *VLC) Play(ctx context.Context, path string) error {
	if _, err := v.send(ctx, "clear"); err != nil {
		return err
	}
	_, err := v.send(ctx, "add "+path)
	return err
}

// Enqueue appends path without interrupting the current track.
func (v *VLC) Enqueue(ctx context.Context, path string) error {
	_, err := v.send(ctx, "enqueue "+path)
	return err
}

// Clear empties the playlist.
func (v *VLC) Clear(ctx context.Context) error {
	_, err := v.send(ctx, "clear")
	return err
}

// Pause toggles pause.
func (v *VLC) Pause(ctx context.Context) error {
	_, err := v.send(ctx, "pause")
	return err
}

// Stop halts playback.
func (v *VLC) Stop(ctx context.Context) error {
	_, err := v.send(ctx, "stop")
	return err
}

// Next skips to the next playlist entry.
func (v *VLC) Next(ctx context.Context) error {
	_, err := v.send(ctx, "next")
	return err
}

// SetLoop toggles playlist looping.
func (v *VLC) SetLoop(ctx context.Context, enabled bool) error {
	value := "off"
	if enabled {
		value = "on"
	}
	_, err := v.send(ctx, "loop "+value)
	return err
}

// Status issues status/get_time/get_length sequentially and parses the
// free-text output. State comes from substring matching; anything that is
// neither "state playing" nor "state paused" reads as stopped.
func (v *VLC) Status(ctx context.Context) (Status, error) {
	statusOut, err := v.send(ctx, "status")
	if err != nil {
		return Status{}, err
	}
	timeOut, err := v.send(ctx, "get_time")
	if err != nil {
		return Status{}, err
	}
	lengthOut, err := v.send(ctx, "get_length")
	if err != nil {
		return Status{}, err
	}

	status := Status{
		State:           StateStopped,
		PositionSeconds: float64(parseVLCInt(timeOut)),
		DurationSeconds: float64(parseVLCInt(lengthOut)),
	}
	switch {
	case strings.Contains(statusOut, "state playing"):
		status.State = StatePlaying
		status.IsPlaying = true
	case strings.Contains(statusOut, "state paused"):
		status.State = StatePaused
	}
	if match := vlcInputPattern.FindStringSubmatch(statusOut); match != nil {
		status.CurrentFile = match[1]
	}
	return status, nil
}

// UpdateLogo is not supported by the RC protocol; overlays silently degrade
// to nothing on this backend.
func (v *VLC) UpdateLogo(ctx context.Context, cfg LogoConfig) error {
	return nil
}

// parseVLCInt extracts the first integer in the output, defaulting to zero.
func parseVLCInt(out string) int {
	match := vlcIntPattern.FindString(out)
	if match == "" {
		return 0
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return value
}
