// Package mock provides an in-memory GPIO provider: a simulated board of
// lines with levels and edge watchers. Outputs drive lines, inputs watch
// them, and tests (or the daemon, when no hardware is configured) can
// stimulate input lines directly.
//
// A line driven by an output and watched by an input behaves as a
// loopback: SetState on the output fires the input's edge callback.
package mock

import (
	"sync"

	"github.com/GeVanCo/pi4j-v2/digital"
)

// Board is the shared line state behind every instance the provider
// creates. Safe for concurrent use.
type Board struct {
	mu       sync.Mutex
	levels   map[int]digital.State
	watchers map[int]map[uint64]func(digital.State)
	nextID   uint64
}

// NewBoard returns an empty board; every line reads Unknown until driven.
func NewBoard() *Board {
	return &Board{
		levels:   make(map[int]digital.State),
		watchers: make(map[int]map[uint64]func(digital.State)),
	}
}

// SetLine drives a line from outside, as hardware would: the level is
// stored and every watcher of that address is notified synchronously.
func (b *Board) SetLine(address int, s digital.State) {
	b.drive(address, s)
}

// Level reads the current level of a line; Unknown when never driven.
func (b *Board) Level(address int) digital.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[address]
}

func (b *Board) drive(address int, s digital.State) {
	b.mu.Lock()
	b.levels[address] = s
	var notify []func(digital.State)
	for _, w := range b.watchers[address] {
		notify = append(notify, w)
	}
	b.mu.Unlock()

	for _, w := range notify {
		w(s)
	}
}

// watch registers an edge callback for a line; the returned func removes it.
func (b *Board) watch(address int, fn func(digital.State)) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.watchers[address] == nil {
		b.watchers[address] = make(map[uint64]func(digital.State))
	}
	b.nextID++
	id := b.nextID
	b.watchers[address][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers[address], id)
	}
}
