// Package ratelimit implements the in-process sliding-window admission gate
// for abusive authentication traffic. Buckets live only in memory and reset
// on restart; durable throttling is explicitly not a goal.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter over opaque bucket keys. Callers
// key buckets by (path, client IP) or (path, normalized identifier).
//
// On every admission check the bucket is pruned to the window first. A
// rejected attempt is not recorded, so a client hammering a gated path does
// not extend its own lockout.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	buckets map[string][]time.Time
}

// New builds a Limiter admitting at most max attempts per window per key.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		buckets: make(map[string][]time.Time),
	}
}

// Allow checks and records an attempt for key at now. It returns false when
// the bucket already holds max attempts within the window.
func (l *Limiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := l.buckets[key][:0]
	for _, ts := range l.buckets[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.buckets[key] = kept
		return false
	}

	l.buckets[key] = append(kept, now)
	return true
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Prune drops buckets whose every entry fell out of the window, bounding
// memory between bursts. Safe to call from a background ticker.
func (l *Limiter) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	for key, bucket := range l.buckets {
		live := false
		for _, ts := range bucket {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.buckets, key)
		}
	}
}

// Len reports the number of live buckets. Used by tests and by the pruning
// log line.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
