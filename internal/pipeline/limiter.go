package pipeline

import (
	"strings"
	"sync"
	"time"
)

type limiterEntry struct {
	last   time.Time
	failed bool
}

// Limiter throttles refreshes per owner address: a cooldown window after
// a successful refresh and a longer backoff window after a failed one.
type Limiter struct {
	mu          sync.Mutex
	cooldown    time.Duration
	failBackoff time.Duration
	entries     map[string]limiterEntry

	now func() time.Time
}

// NewLimiter builds a Limiter with the given windows.
func NewLimiter(cooldown, failBackoff time.Duration) *Limiter {
	return &Limiter{
		cooldown:    cooldown,
		failBackoff: failBackoff,
		entries:     make(map[string]limiterEntry),
		now:         time.Now,
	}
}

// Allow reports whether a refresh for the owner may start now, and the
// remaining wait when it may not.
func (l *Limiter) Allow(owner string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[strings.ToLower(owner)]
	if !ok {
		return true, 0
	}

	window := l.cooldown
	if entry.failed {
		window = l.failBackoff
	}
	remaining := window - l.now().Sub(entry.last)
	if remaining > 0 {
		return false, remaining
	}
	return true, 0
}

// Record notes the outcome of a refresh for the owner.
func (l *Limiter) Record(owner string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[strings.ToLower(owner)] = limiterEntry{last: l.now(), failed: !success}
}
