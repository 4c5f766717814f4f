package http

import (
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter provides per-client rate limiting using a token bucket
type hostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newHostLimiter(rps float64, burst int) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// get returns or creates the limiter for host
func (l *hostLimiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = limiter
	return limiter
}

// allow reports whether a request from host may proceed now
func (l *hostLimiter) allow(host string) bool {
	return l.get(host).Allow()
}
