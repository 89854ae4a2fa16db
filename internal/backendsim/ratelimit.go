package backendsim

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter is a sliding-window attempt counter keyed by caller.
type RateLimiter struct {
	mu         sync.Mutex
	attempts   map[string][]time.Time
	maxAge     time.Duration
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a limiter that drops entries older than maxAge every
// cleanupInterval and tracks at most maxEntries keys.
func NewRateLimiter(cleanupInterval, maxAge time.Duration, maxEntries int) *RateLimiter {
	rl := &RateLimiter{
		attempts:   make(map[string][]time.Time),
		maxAge:     maxAge,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go rl.cleanupLoop(cleanupInterval)
	return rl
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup(rl.maxAge)
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// CheckLimit records an attempt for key and fails when key already has
// maxAttempts within window.
func (rl *RateLimiter) CheckLimit(key string, maxAttempts int, window time.Duration) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	var recent []time.Time
	for _, t := range rl.attempts[key] {
		if now.Sub(t) < window {
			recent = append(recent, t)
		}
	}

	if len(recent) >= maxAttempts {
		return fmt.Errorf("too many attempts, try again in %v", window)
	}

	if _, tracked := rl.attempts[key]; !tracked && rl.maxEntries > 0 && len(rl.attempts) >= rl.maxEntries {
		rl.evictOldestLocked()
	}
	rl.attempts[key] = append(recent, now)
	return nil
}

// evictOldestLocked drops the key whose latest attempt is oldest.
func (rl *RateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, ts := range rl.attempts {
		if len(ts) == 0 {
			oldestKey = k
			break
		}
		last := ts[len(ts)-1]
		if oldestKey == "" || last.Before(oldest) {
			oldestKey, oldest = k, last
		}
	}
	delete(rl.attempts, oldestKey)
}

// ResetLimit clears the attempts of key.
func (rl *RateLimiter) ResetLimit(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Cleanup removes attempts older than maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, attempts := range rl.attempts {
		var recent []time.Time
		for _, t := range attempts {
			if now.Sub(t) < maxAge {
				recent = append(recent, t)
			}
		}

		if len(recent) == 0 {
			delete(rl.attempts, key)
		} else {
			rl.attempts[key] = recent
		}
	}
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}
