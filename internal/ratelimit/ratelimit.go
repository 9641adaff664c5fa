// Package ratelimit provides a per-host token bucket limiter for outbound
// scraping. Each host gets its own independent bucket so a slow member-list
// fetch against one organization never starves another.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter manages one token bucket per host.
type HostLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a host limiter allowing rps requests per second with the
// given burst per host.
func New(rps float64, burst int) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request to host may proceed right now.
func (hl *HostLimiter) Allow(host string) bool {
	return hl.getLimiter(host).Allow()
}

// Wait blocks until a request to host is allowed or the context is canceled.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	return hl.getLimiter(host).Wait(ctx)
}

func (hl *HostLimiter) getLimiter(host string) *rate.Limiter {
	hl.mu.RLock()
	limiter, exists := hl.limiters[host]
	hl.mu.RUnlock()

	if exists {
		return limiter
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists = hl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hl.limit, hl.burst)
	hl.limiters[host] = limiter
	return limiter
}
