package api

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/config"
)

// maxTrackedClients bounds the per-client limiter map. When exceeded the
// map is reset and every client starts with a full burst again.
const maxTrackedClients = 1024

// rateLimiter holds one token bucket per client.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

// allow consumes one token for key.
func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
