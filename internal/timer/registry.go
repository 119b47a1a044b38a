// Package timer keeps the one-shot timers that drive a game session: order
// expiries and delayed order generation.
package timer

import (
	"sync"
	"time"
)

type handle struct {
	key      string
	playerID string
	t        *time.Timer
}

// Registry indexes pending timers by key and by player.
//
// A timer either fires or is cancelled, never both: the callback claims its
// key under the registry lock before running, and Cancel removes the key under
// the same lock. A callback that already claimed its key runs to completion
// even if the player's timers are cancelled meanwhile.
type Registry struct {
	mu       sync.Mutex
	timers   map[string]*handle
	byPlayer map[string]map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		timers:   make(map[string]*handle),
		byPlayer: make(map[string]map[string]struct{}),
	}
}

// Schedule runs onFire once after d unless the key is cancelled first.
// Scheduling an existing key replaces its timer.
func (r *Registry) Schedule(key, playerID string, d time.Duration, onFire func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[key]; ok {
		old.t.Stop()
		r.remove(old)
	}

	h := &handle{key: key, playerID: playerID}
	h.t = time.AfterFunc(d, func() {
		if r.claim(h) {
			onFire()
		}
	})
	r.timers[key] = h
	keys, ok := r.byPlayer[playerID]
	if !ok {
		keys = make(map[string]struct{})
		r.byPlayer[playerID] = keys
	}
	keys[key] = struct{}{}
}

// Cancel stops the timer for key. It reports false when the key already fired
// or was never scheduled.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.timers[key]
	if !ok {
		return false
	}
	h.t.Stop()
	r.remove(h)
	return true
}

// CancelAll stops every timer of the player and returns how many were pending.
func (r *Registry) CancelAll(playerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.byPlayer[playerID]
	n := 0
	for key := range keys {
		if h, ok := r.timers[key]; ok {
			h.t.Stop()
			delete(r.timers, key)
			n++
		}
	}
	delete(r.byPlayer, playerID)
	return n
}

// Pending returns the number of the player's timers that have not fired.
func (r *Registry) Pending(playerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPlayer[playerID])
}

// Has reports whether key is scheduled and has not fired.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[key]
	return ok
}

// Len returns the number of pending timers across all players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// claim removes h if it is still the current timer for its key.
func (r *Registry) claim(h *handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timers[h.key] != h {
		return false
	}
	r.remove(h)
	return true
}

func (r *Registry) remove(h *handle) {
	delete(r.timers, h.key)
	if keys, ok := r.byPlayer[h.playerID]; ok {
		delete(keys, h.key)
		if len(keys) == 0 {
			delete(r.byPlayer, h.playerID)
		}
	}
}
