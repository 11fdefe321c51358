// Package rate_limiter hands out one token bucket per client IP.
package rate_limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Visitors struct {
	mu       sync.Mutex
	visitors map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewVisitors(perSec float64, burst int) *Visitors {
	return &Visitors{
		visitors: make(map[string]*clientLimiter),
		limit:    rate.Limit(perSec),
		burst:    burst,
		now:      time.Now,
	}
}

func (v *Visitors) GetVisitor(ip string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	c, exists := v.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(v.limit, v.burst)
		v.visitors[ip] = &clientLimiter{limiter, v.now()}
		return limiter
	}

	c.lastSeen = v.now()
	return c.limiter
}

func (v *Visitors) Allow(ip string) bool {
	return v.GetVisitor(ip).Allow()
}

// Forget drops visitors not seen for longer than idle.
func (v *Visitors) Forget(idle time.Duration) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for ip, c := range v.visitors {
		if v.now().Sub(c.lastSeen) > idle {
			delete(v.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupLoop forgets idle visitors every interval until ctx is done.
func (v *Visitors) StartCleanupLoop(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Forget(idle)
		}
	}
}
