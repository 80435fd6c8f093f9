// internal/guard/ratelimit.go
//
// Per-client token-bucket limiter.
//
// Each client IP gets its own rate.Limiter.  Buckets idle for longer than
// idleTTL are swept on access so the map cannot grow without bound.

package guard

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yanizio/relay/internal/pipeline"
	"github.com/yanizio/relay/internal/requestinfo"
)

const (
	idleTTL       = 10 * time.Minute
	sweepInterval = time.Minute
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter holds one bucket per client key.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewLimiter allows rps requests per second per client with the given burst.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: map[string]*bucket{},
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepInterval {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// RateLimit rejects clients over their budget with 429.
func RateLimit(l *Limiter) pipeline.Stage {
	return pipeline.Func("rate-limit", func(req *pipeline.Request) pipeline.Result {
		key := "unknown"
		if ip := requestinfo.ClientIP(req.HTTP()); ip != nil {
			key = ip.String()
		}
		if !l.Allow(key) {
			req.ResponseHeader.Set("Retry-After", "1")
			return reject(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		}
		return pipeline.Next()
	})
}
