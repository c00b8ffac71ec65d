/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNotConnected is returned by any command issued before Connect succeeds
// or after the socket drops.
var ErrNotConnected = errors.New("player not connected")

// ConnectionError wraps transport-level failures so callers can distinguish
// a dead player process from a protocol-level refusal.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("player connection %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError signals the player answered but rejected the command.
type ProtocolError struct {
	Command string
	Detail  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("player rejected %q: %s", e.Command, e.Detail)
}

// IsConnectionError reports whether err is a connection-class failure:
// not-connected, a typed ConnectionError, or a network error underneath.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "use of closed network connection")
}
