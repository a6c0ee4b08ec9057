package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToLimit(t *testing.T) {
	l := NewLimiter(60*time.Second, 5)

	for i := 1; i <= 5; i++ {
		ok, _ := l.Allow("user-a")
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	ok, retryAfter := l.Allow("user-a")
	if ok {
		t.Fatalf("6th request in window should be rejected")
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("retryAfter out of range: %d", retryAfter)
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l := NewLimiter(60*time.Second, 5)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	l.now = func() time.Time { return current }

	for i := 0; i < 6; i++ {
		l.Allow("user-b")
	}
	if ok, _ := l.Allow("user-b"); ok {
		t.Fatalf("should still be rejected inside window")
	}

	// 윈도우 경과 후에는 새 윈도우로 허용
	current = base.Add(61 * time.Second)
	if ok, _ := l.Allow("user-b"); !ok {
		t.Fatalf("request after window elapsed should be allowed")
	}
}

func TestLimiterIsolatesUsers(t *testing.T) {
	l := NewLimiter(60*time.Second, 5)

	for i := 0; i < 6; i++ {
		l.Allow("user-c")
	}

	if ok, _ := l.Allow("user-d"); !ok {
		t.Fatalf("other user should not be affected")
	}
}
