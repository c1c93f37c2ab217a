package httputil

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter paces outbound requests per host so static fetches stay
// under a site's tolerance.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
	burst    int
}

func NewHostLimiter(interval time.Duration, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL's host is allowed, or the context
// is cancelled.
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	hl.mu.Lock()
	limiter, ok := hl.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(hl.interval), hl.burst)
		hl.limiters[host] = limiter
	}
	hl.mu.Unlock()

	return limiter.Wait(ctx)
}
