package backendsim

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_CheckLimit(t *testing.T) {
	rl := NewRateLimiter(time.Hour, time.Hour, 100)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if err := rl.CheckLimit("ip", 3, time.Minute); err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i+1, err)
		}
	}
	if err := rl.CheckLimit("ip", 3, time.Minute); err == nil {
		t.Fatal("expected limit error on fourth attempt")
	}

	if err := rl.CheckLimit("other", 3, time.Minute); err != nil {
		t.Errorf("keys must be independent: %v", err)
	}

	rl.ResetLimit("ip")
	if err := rl.CheckLimit("ip", 3, time.Minute); err != nil {
		t.Errorf("expected reset to clear attempts: %v", err)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(time.Hour, time.Hour, 100)
	defer rl.Stop()

	now := time.Date(2026, 2, 25, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := rl.CheckLimit("ip", 2, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := rl.CheckLimit("ip", 2, time.Minute); err == nil {
		t.Fatal("expected limit error")
	}

	now = now.Add(61 * time.Second)
	if err := rl.CheckLimit("ip", 2, time.Minute); err != nil {
		t.Errorf("expected attempts outside the window to be forgotten: %v", err)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(50*time.Millisecond, 100*time.Millisecond, 1000)
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		if err := rl.CheckLimit(fmt.Sprintf("ip-%d", i), 100, time.Hour); err != nil {
			t.Fatalf("CheckLimit failed: %v", err)
		}
	}
	if rl.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", rl.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	for rl.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if rl.Len() != 0 {
		t.Errorf("expected 0 entries after cleanup, got %d", rl.Len())
	}
}

func TestRateLimiter_MaxEntriesEviction(t *testing.T) {
	maxEntries := 5
	rl := NewRateLimiter(time.Hour, time.Hour, maxEntries)
	defer rl.Stop()

	for i := 0; i < maxEntries+3; i++ {
		if err := rl.CheckLimit(fmt.Sprintf("ip-%d", i), 100, time.Hour); err != nil {
			t.Fatalf("CheckLimit failed: %v", err)
		}
	}
	if rl.Len() != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, rl.Len())
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(time.Hour, time.Hour, 1000)
	defer rl.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.CheckLimit("shared", 10, time.Minute) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 allowed attempts, got %d", allowed)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(time.Hour, time.Hour, 10)
	rl.Stop()
	rl.Stop()
}
