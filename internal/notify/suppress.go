package notify

import (
	"sync"
	"time"
)

// Suppressor is an at-most-once-per-window gate keyed by notification key.
// It replaces ad-hoc "already notified" flags with one injected store, so
// repeated stale-lead sweeps or digest runs don't spam the channel.
type Suppressor struct {
	mu       sync.Mutex
	window   time.Duration
	lastSent map[string]time.Time
}

func NewSuppressor(window time.Duration) *Suppressor {
	return &Suppressor{
		window:   window,
		lastSent: make(map[string]time.Time),
	}
}

// Allow reports whether a notification with this key may be sent at now,
// and records the send when it may. A key is allowed again once the window
// has fully elapsed.
func (s *Suppressor) Allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSent[key]; ok && now.Sub(last) < s.window {
		return false
	}
	s.lastSent[key] = now
	return true
}

// Forget drops a key so the next Allow succeeds immediately.
func (s *Suppressor) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastSent, key)
}

// Sweep removes entries older than the window and returns how many were
// dropped. The worker calls this periodically to bound memory.
func (s *Suppressor) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, last := range s.lastSent {
		if now.Sub(last) >= s.window {
			delete(s.lastSent, key)
			removed++
		}
	}
	return removed
}
