package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	windowStart time.Time
	count       int
}

// Limiter - 고정 윈도우 방식의 프로세스 로컬 요청 제한기
// 인스턴스 간 공유되지 않음 (단일 인스턴스 배포 전제)
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string]*entry
	now     func() time.Time
}

// NewLimiter - Limiter 생성
func NewLimiter(window time.Duration, limit int) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow - 요청 허용 여부 확인
// 거부 시 retryAfter는 윈도우가 끝날 때까지 남은 초 (최소 1)
func (l *Limiter) Allow(userID string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, exists := l.entries[userID]
	if !exists || now.Sub(e.windowStart) >= l.window {
		// 새 윈도우 시작
		l.entries[userID] = &entry{windowStart: now, count: 1}
		return true, 0
	}

	e.count++
	if e.count > l.limit {
		remaining := l.window - now.Sub(e.windowStart)
		secs := int(remaining.Seconds())
		if secs < 1 {
			secs = 1
		}
		return false, secs
	}

	return true, 0
}
