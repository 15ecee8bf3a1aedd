package ratelimit

import (
	"sync"
	"time"
)

// #region config

// Config bounds the number of applied kill actions per sliding window.
type Config struct {
	Span time.Duration `yaml:"span"`
	Cap  int           `yaml:"cap"`
}

// DefaultConfig returns the documented bound: at most 3 kills per 30 minutes.
func DefaultConfig() Config {
	return Config{Span: 30 * time.Minute, Cap: 3}
}

// #endregion config

// #region kill-window

// KillWindow is a sliding-window counter over applied kill actions. Eviction
// is continuous: an event stops counting exactly Span after it happened, so
// there is no fixed-bucket boundary to game.
//
// TryConsume is a single check-and-append under one lock. Concurrent kill
// requests from the same tick cannot both slip past the cap.
type KillWindow struct {
	mu     sync.Mutex
	config Config
	events []time.Time
}

// NewKillWindow creates a window with the given bounds.
func NewKillWindow(config Config) *KillWindow {
	return &KillWindow{config: config}
}

// TryConsume records one kill at now if the window has room and reports
// whether it was admitted. A false return means the caller must suppress.
func (w *KillWindow) TryConsume(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	if len(w.events) >= w.config.Cap {
		return false
	}
	w.events = append(w.events, now)
	return true
}

// Refund returns the most recently admitted slot. Called when an admitted
// kill was not applied after all, so only applied kills count toward the cap.
func (w *KillWindow) Refund() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.events); n > 0 {
		w.events = w.events[:n-1]
	}
}

// Count returns how many kills are inside the window at now.
func (w *KillWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return len(w.events)
}

// evict drops events older than Span. Caller holds mu.
func (w *KillWindow) evict(now time.Time) {
	cutoff := now.Add(-w.config.Span)
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// #endregion kill-window
