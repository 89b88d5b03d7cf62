package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether an owner may publish another story item now.
type Limiter interface {
	Allow(ownerID string) bool
}

// InMemoryLimiter keeps one token bucket per owner.
type InMemoryLimiter struct {
	owners map[string]*rate.Limiter
	mu     sync.Mutex
	r      rate.Limit
	b      int
}

// NewInMemoryLimiter allows requests per window with the given burst.
// NewInMemoryLimiter(10, time.Minute, 3) allows ten publishes a minute, three back to back.
// A non-positive requests count disables limiting.
func NewInMemoryLimiter(requests int, per time.Duration, burst int) *InMemoryLimiter {
	r := rate.Inf
	if requests > 0 && per > 0 {
		r = rate.Every(per / time.Duration(requests))
	}
	if burst < 1 {
		burst = 1
	}
	return &InMemoryLimiter{
		owners: make(map[string]*rate.Limiter),
		r:      r,
		b:      burst,
	}
}

func (l *InMemoryLimiter) Allow(ownerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.owners[ownerID]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.owners[ownerID] = limiter
	}

	return limiter.Allow()
}

var _ Limiter = (*InMemoryLimiter)(nil)
