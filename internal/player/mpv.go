/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MPV is the framed-JSON IPC client. Every command carries a monotonically
// increasing request id; a pending map routes each response line back to the
// caller, so multiple commands may be in flight on the one socket.
type MPV struct {
	socketPath string
	opts       Options
	logger     zerolog.Logger

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	nextID    int
	pending   map[int]chan mpvResponse
}

type mpvResponse struct {
	RequestID int             `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

// NewMPV creates an mpv IPC client for the given unix socket path.
func NewMPV(socketPath string, opts Options, logger zerolog.Logger) *MPV {
	return &MPV{
		socketPath: socketPath,
		opts:       opts,
		logger:     logger.With().Str("component", "mpv_client").Logger(),
		pending:    map[int]chan mpvResponse{},
	}
}

// Connect dials the socket, retrying up to the configured attempt count with
// a fixed delay between attempts.
func (m *MPV) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= m.opts.ConnectAttempts; attempt++ {
		conn, err := net.Dial("unix", m.socketPath)
		if err == nil {
			m.mu.Lock()
			m.conn = conn
			m.connected = true
			m.mu.Unlock()
			go m.readLoop(conn)
			m.logger.Info().Str("socket", m.socketPath).Msg("connected to mpv")
			return nil
		}
		lastErr = err
		m.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", m.opts.ConnectAttempts).
			Msg("mpv connect failed")

		if attempt < m.opts.ConnectAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.ConnectDelay):
			}
		}
	}
	return &ConnectionError{Addr: m.socketPath, Err: lastErr}
}

// Disconnect closes the socket. Pending callers are failed by the read loop
// when the socket unblocks.
func (m *MPV) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	m.connected = false
	return err
}

// readLoop decodes one JSON object per line, discarding asynchronous event
// notifications and routing responses by request id. Runs until the socket
// closes.
func (m *MPV) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var resp mpvResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			m.logger.Warn().Err(err).Msg("unparseable mpv line")
			continue
		}
		if resp.Event != "" {
			continue
		}
		m.mu.Lock()
		ch, ok := m.pending[resp.RequestID]
		if ok {
			delete(m.pending, resp.RequestID)
		}
		m.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	m.mu.Lock()
	m.connected = false
	m.conn = nil
	waiting := m.pending
	m.pending = map[int]chan mpvResponse{}
	m.mu.Unlock()
	for _, ch := range waiting {
		close(ch)
	}
	m.logger.Warn().Msg("mpv socket closed")
}

// command sends one IPC command and waits for its correlated response, up to
// the configured request timeout. A stuck socket fails the caller instead of
// stalling it forever.
func (m *MPV) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	m.mu.Lock()
	if !m.connected || m.conn == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	m.nextID++
	id := m.nextID
	ch := make(chan mpvResponse, 1)
	m.pending[id] = ch
	conn := m.conn
	m.mu.Unlock()

	payload, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		m.dropPending(id)
		return nil, err
	}
	payload = append(payload, '\n')

	if _, err := conn.Write(payload); err != nil {
		m.dropPending(id)
		return nil, &ConnectionError{Addr: m.socketPath, Err: err}
	}

	timeout := m.opts.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-ctx.Done():
		m.dropPending(id)
		return nil, ctx.Err()
	case <-time.After(timeout):
		m.dropPending(id)
		return nil, &ConnectionError{Addr: m.socketPath, Err: fmt.Errorf("request %d timed out after %s", id, timeout)}
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Error != "success" {
			return nil, &ProtocolError{Command: fmt.Sprint(args...), Detail: resp.Error}
		}
		return resp.Data, nil
	}
}

func (m *MPV) dropPending(id int) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// Play replaces the current playlist with path and starts playback.
func (m *MPV) Play(ctx context.Context, path string) error {
	_, err := m.command(ctx, "loadfile", path, "replace")
	return err
}

// Enqueue appends path to the native playlist for gapless auto-advance.
func (m *MPV) Enqueue(ctx context.Context, path string) error {
	_, err := m.command(ctx, "loadfile", path, "append-play")
	return err
}

// Clear drops every pending playlist entry; the current track keeps playing.
func (m *MPV) Clear(ctx context.Context) error {
	_, err := m.command(ctx, "playlist-clear")
	return err
}

// Pause toggles the pause flag.
func (m *MPV) Pause(ctx context.Context) error {
	_, err := m.command(ctx, "cycle", "pause")
	return err
}

// Stop halts playback and clears the playlist.
func (m *MPV) Stop(ctx context.Context) error {
	_, err := m.command(ctx, "stop")
	return err
}

// Next force-skips to the next playlist entry.
func (m *MPV) Next(ctx context.Context) error {
	_, err := m.command(ctx, "playlist-next", "force")
	return err
}

// SetLoop toggles per-file looping, used while the off-air asset runs.
func (m *MPV) SetLoop(ctx context.Context, enabled bool) error {
	value := "no"
	if enabled {
		value = "inf"
	}
	_, err := m.command(ctx, "set_property", "loop-file", value)
	return err
}

// Status combines separate property reads into one snapshot: idle or no path
// means stopped, otherwise the pause flag decides playing vs paused.
func (m *MPV) Status(ctx context.Context) (Status, error) {
	idle, err := m.boolProperty(ctx, "idle-active")
	if err != nil {
		return Status{}, err
	}
	path := m.stringProperty(ctx, "path")
	paused, _ := m.boolProperty(ctx, "pause")
	position := m.floatProperty(ctx, "time-pos")
	duration := m.floatProperty(ctx, "duration")

	status := Status{
		CurrentFile:     path,
		PositionSeconds: position,
		DurationSeconds: duration,
	}
	switch {
	case idle || path == "":
		status.State = StateStopped
	case paused:
		status.State = StatePaused
	default:
		status.State = StatePlaying
		status.IsPlaying = true
	}
	return status, nil
}

// boolProperty fails on transport errors but not on protocol errors: mpv
// reports "property unavailable" for unset properties, which reads as false.
func (m *MPV) boolProperty(ctx context.Context, name string) (bool, error) {
	data, err := m.command(ctx, "get_property", name)
	if err != nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			return false, nil
		}
		return false, err
	}
	var value bool
	if err := json.Unmarshal(data, &value); err != nil {
		return false, nil
	}
	return value, nil
}

func (m *MPV) stringProperty(ctx context.Context, name string) string {
	data, err := m.command(ctx, "get_property", name)
	if err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return ""
	}
	return value
}

func (m *MPV) floatProperty(ctx context.Context, name string) float64 {
	data, err := m.command(ctx, "get_property", name)
	if err != nil {
		return 0
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return 0
	}
	return value
}
