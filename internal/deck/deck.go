/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package deck implements a draw-without-replacement shuffle deck that
// reshuffles automatically on exhaustion.
package deck

import (
	"math/rand"
	"time"
)

// Deck draws items from a fixed universe without repetition until the
// universe is exhausted, then reshuffles. The last item drawn before
// exhaustion may legally repeat as the first item after reshuffle; no
// anti-adjacency is guaranteed across shuffle boundaries.
type Deck[T any] struct {
	universe []T
	pile     []T
	rng      *rand.Rand
}

// New creates a deck over the given universe.
func New[T any](items []T) *Deck[T] {
	return NewWithSeed(items, time.Now().UnixNano())
}

// NewWithSeed creates a deck with a deterministic shuffle order.
func NewWithSeed[T any](items []T, seed int64) *Deck[T] {
	return NewWithRand(items, rand.New(rand.NewSource(seed)))
}

// NewWithRand creates a deck sharing the caller's random source.
func NewWithRand[T any](items []T, rng *rand.Rand) *Deck[T] {
	d := &Deck[T]{rng: rng}
	d.SetItems(items)
	return d
}

// Draw returns the next item. When the pile is empty the full universe is
// reshuffled first. Returns false only when the universe itself is empty.
func (d *Deck[T]) Draw() (T, bool) {
	if len(d.universe) == 0 {
		var zero T
		return zero, false
	}
	if len(d.pile) == 0 {
		d.reshuffle()
	}
	item := d.pile[len(d.pile)-1]
	d.pile = d.pile[:len(d.pile)-1]
	return item, true
}

// SetItems replaces the universe and forces an immediate reshuffle.
func (d *Deck[T]) SetItems(items []T) {
	d.universe = append([]T(nil), items...)
	d.reshuffle()
}

// Reshuffle discards the current pile and reshuffles the full universe.
func (d *Deck[T]) Reshuffle() {
	d.reshuffle()
}

// Size returns the universe size.
func (d *Deck[T]) Size() int {
	return len(d.universe)
}

// Remaining returns the number of items left before the next reshuffle.
func (d *Deck[T]) Remaining() int {
	return len(d.pile)
}

func (d *Deck[T]) reshuffle() {
	d.pile = append(d.pile[:0:0], d.universe...)
	d.rng.Shuffle(len(d.pile), func(i, j int) {
		d.pile[i], d.pile[j] = d.pile[j], d.pile[i]
	})
}
