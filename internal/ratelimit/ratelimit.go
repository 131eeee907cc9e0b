// Package ratelimit admits lookup requests under a global per-second ceiling
// and a per-user cooldown.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultGlobalLimit = 5
	DefaultWindow      = time.Second
	DefaultCooldown    = 5 * time.Second
)

// Limiter is an in-memory sliding-window limiter. State is lost on restart.
type Limiter struct {
	mu     sync.Mutex
	global []time.Time // ascending
	last   map[int64]time.Time

	limit    int
	window   time.Duration
	cooldown time.Duration
}

// New returns a limiter admitting at most limit requests per window overall
// and one request per user every cooldown. Non-positive values fall back to
// the defaults.
func New(limit int, window, cooldown time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultGlobalLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{
		last:     make(map[int64]time.Time),
		limit:    limit,
		window:   window,
		cooldown: cooldown,
	}
}

// Admit reports whether userID may proceed at now. The check and the record
// are one critical section, so concurrent callers never exceed the limit.
func (l *Limiter) Admit(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.global) >= l.limit {
		return false
	}

	if last, ok := l.last[userID]; ok && now.Sub(last) < l.cooldown {
		return false
	}

	l.global = append(l.global, now)
	l.last[userID] = now
	return true
}

// prune drops global entries older than now-window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.global) && l.global[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(l.global, l.global[i:])
	l.global = l.global[:n]
}

// Sweep forgets users whose cooldown has elapsed and returns how many were
// removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, last := range l.last {
		if now.Sub(last) >= l.cooldown {
			delete(l.last, id)
			removed++
		}
	}
	l.prune(now)
	return removed
}

// InFlight returns the number of admissions inside the current window.
func (l *Limiter) InFlight(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	return len(l.global)
}
