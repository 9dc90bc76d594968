package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst should be allowed")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys have their own budget")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatal("zero rate should disable limiting")
		}
	}

	var nilLimiter *RateLimiter
	if !nilLimiter.Allow("a") {
		t.Fatal("nil limiter should allow")
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	clock := time.Unix(0, 0)
	rl.now = func() time.Time { return clock }

	for i := 0; i < maxLimiters; i++ {
		rl.getLimiter(string(rune('a' + i%26)) + time.Duration(i).String())
	}
	if len(rl.limits) != maxLimiters {
		t.Fatalf("expected %d limiters, got %d", maxLimiters, len(rl.limits))
	}

	clock = clock.Add(2 * limiterIdle)
	rl.getLimiter("fresh")
	if len(rl.limits) != 1 {
		t.Fatalf("expected idle limiters to be evicted, got %d", len(rl.limits))
	}
}
