/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventSessionStart   EventType = "session_start"
	EventSessionEnd     EventType = "session_end"
	EventTrackStart     EventType = "track_start"
	EventPlaying        EventType = "playing"
	EventPaused         EventType = "paused"
	EventQueueUpdate    EventType = "queue_update"
	EventSync           EventType = "sync"
	EventLibraryChanged EventType = "library_changed"
)

// Payload generic event payload.
type Payload map[string]any

// Envelope pairs a payload with its event type for wildcard subscribers.
type Envelope struct {
	Type    EventType `json:"type"`
	Payload Payload   `json:"payload"`
}

// Subscriber receives event envelopes.
type Subscriber chan Envelope

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
	all  []Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// SubscribeAll registers a subscriber for every event type.
func (b *Bus) SubscribeAll() Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.all = append(b.all, ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers drop events rather
// than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	env := Envelope{Type: eventType, Payload: payload}
	for _, sub := range subs {
		select {
		case sub <- env:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs

	for i, candidate := range b.all {
		if candidate == sub {
			b.all = append(b.all[:i], b.all[i+1:]...)
			break
		}
	}
	close(sub)
}
