// Package ratelimit throttles MCP tool calls with per-tool token buckets.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by every LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError reports a rejected call and how long until a token is free.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v for %s, retry in %s", ErrRateLimited, e.Tool, e.RetryAfter)
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }

// Limiter is a token bucket per key. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // bucket size and initial tokens
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter returns a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// PerMinute returns a limiter allowing n calls a minute with the given burst.
func PerMinute(n, burst int) *Limiter {
	return NewLimiter(float64(n)/60, burst)
}

// Allow takes a token for key if one is available.
func (l *Limiter) Allow(key string) bool {
	_, ok := l.take(key)
	return ok
}

// take refills key's bucket and takes a token. When none is available it
// returns the wait until the next one.
func (l *Limiter) take(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.last = now
	}

	if b.tokens < 1 {
		if l.rate <= 0 {
			return time.Duration(math.MaxInt64), false
		}
		wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
		return wait.Round(time.Millisecond), false
	}
	b.tokens--
	return 0, true
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the limits of the spikerecon MCP tools. Listing is
// cheap; comparing walks two full epoch models.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"spikerecon_runs":    PerMinute(60, 10),
		"spikerecon_epochs":  PerMinute(60, 10),
		"spikerecon_compare": PerMinute(20, 5),
	}
}

// CheckLimit returns a *LimitError when tool is over its limit. Tools with
// no limiter are never limited.
func (t ToolLimiters) CheckLimit(tool string) error {
	l, ok := t[tool]
	if !ok {
		return nil
	}
	if wait, ok := l.take(tool); !ok {
		return &LimitError{Tool: tool, RetryAfter: wait}
	}
	return nil
}
