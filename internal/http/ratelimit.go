package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Mutating requests allowed per client IP per window.
	rateLimitPerWindow = 60
	rateLimitWindow    = time.Minute
)

// rateLimiter counts mutating requests per client IP over a sliding window.
// Entries for quiet clients are swept out by a background goroutine.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	stopOnce sync.Once
	stopped  chan struct{}
}

type visitor struct {
	windowStart time.Time
	count       int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		stopped:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// sweep drops visitors that have been quiet for longer than ten minutes.
func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if v.windowStart.Before(cutoff) {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopped:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.stopped) })
}

// allow reports whether the client may make another mutating request, and
// counts a metrics hit when the limit is exceeded.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[clientIP]
	if !ok || now.Sub(v.windowStart) > rateLimitWindow {
		rl.visitors[clientIP] = &visitor{windowStart: now, count: 1}
		return true
	}

	v.count++
	if v.count > rateLimitPerWindow {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
