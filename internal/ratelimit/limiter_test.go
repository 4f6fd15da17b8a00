package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// clock returns a limiter whose time only moves when advance is called.
func clock(l *Limiter) (advance func(time.Duration)) {
	now := time.Date(2024, 3, 18, 14, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1, 3)
	clock(l)

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("call %d within burst was rejected", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("call after burst was allowed")
	}
}

func TestAllow_Refill(t *testing.T) {
	l := NewLimiter(10, 2)
	advance := clock(l)

	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected rejection after burst")
	}

	advance(200 * time.Millisecond)
	if !l.Allow("k") || !l.Allow("k") {
		t.Error("two tokens should refill after 200ms at 10/s")
	}
	if l.Allow("k") {
		t.Error("refill should not exceed what elapsed")
	}

	advance(time.Hour)
	for i := 0; i < 2; i++ {
		if !l.Allow("k") {
			t.Fatalf("call %d after long idle was rejected", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("refill should cap at burst")
	}
}

func TestAllow_KeysIndependent(t *testing.T) {
	l := NewLimiter(1, 1)
	clock(l)

	if !l.Allow("a") || !l.Allow("b") {
		t.Fatal("first call per key should be allowed")
	}
	if l.Allow("a") {
		t.Error("key a should be exhausted")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := NewLimiter(0, 50)
	clock(l)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestPerMinute(t *testing.T) {
	l := PerMinute(30, 1)
	advance := clock(l)

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected rejection after burst")
	}
	advance(2 * time.Second)
	if !l.Allow("k") {
		t.Error("30/minute should refill one token in 2s")
	}
}

func TestCheckLimit(t *testing.T) {
	l := NewLimiter(2, 1)
	advance := clock(l)
	limiters := ToolLimiters{"spikerecon_compare": l}

	if err := limiters.CheckLimit("spikerecon_compare"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	err := limiters.CheckLimit("spikerecon_compare")
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want *LimitError", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("LimitError should wrap ErrRateLimited")
	}
	if limitErr.Tool != "spikerecon_compare" || limitErr.RetryAfter != 500*time.Millisecond {
		t.Errorf("LimitError = %+v, want retry after 500ms", limitErr)
	}

	advance(500 * time.Millisecond)
	if err := limiters.CheckLimit("spikerecon_compare"); err != nil {
		t.Errorf("after waiting: %v", err)
	}

	for i := 0; i < 100; i++ {
		if err := limiters.CheckLimit("unlimited"); err != nil {
			t.Fatalf("tool without limiter was limited: %v", err)
		}
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()
	for _, tool := range []string{"spikerecon_runs", "spikerecon_epochs", "spikerecon_compare"} {
		if limiters[tool] == nil {
			t.Errorf("no limiter for %s", tool)
		}
	}
}
