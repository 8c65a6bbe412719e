// Package ratelimit provides sliding-window admission control keyed by
// client IP. It is independent of the user/session store and uses its own
// lock: rate decisions have no consistency relationship with account data.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most limit requests per IP within the window. State is
// ephemeral and unbounded in the number of distinct IPs observed.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string][]int64
	limit   int
	window  time.Duration
	nowTime func() time.Time
}

// LimiterOption modifies a Limiter.
type LimiterOption func(*Limiter)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.nowTime = nowFunc
	}
}

// NewLimiter creates a Limiter admitting limit requests per window per IP.
func NewLimiter(limit int, window time.Duration, options ...LimiterOption) *Limiter {
	l := &Limiter{
		buckets: make(map[string][]int64),
		limit:   limit,
		window:  window,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Admit reports whether a request from ip is allowed. Timestamps older than
// the window are pruned from the front; at or above the limit the request
// is rejected without being recorded, otherwise now is appended. An empty
// ip is admitted without recording.
func (l *Limiter) Admit(ip string) bool {
	if ip == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime().Unix()
	cutoff := now - int64(l.window.Seconds())
	bucket := l.buckets[ip]
	for len(bucket) > 0 && bucket[0] < cutoff {
		bucket = bucket[1:]
	}
	if len(bucket) >= l.limit {
		l.buckets[ip] = bucket
		return false
	}
	l.buckets[ip] = append(bucket, now)
	return true
}
