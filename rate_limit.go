package auth

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per client key (usually the IP)
type LoginLimiter struct {
	perMinute int
	burst     int
	limiters  *cache.Cache
}

// NewLoginLimiter allows perMinute attempts per key with burst. Keys idle
// for ten minutes are evicted.
func NewLoginLimiter(perMinute, burst int) *LoginLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &LoginLimiter{
		perMinute: perMinute,
		burst:     burst,
		limiters:  cache.New(10*time.Minute, time.Minute),
	}
}

// Allow consumes one attempt for key
func (l *LoginLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	var limiter *rate.Limiter
	if raw, ok := l.limiters.Get(key); ok {
		limiter = raw.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst)
		if err := l.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
			// lost the race to another request for the same key
			if raw, ok := l.limiters.Get(key); ok {
				limiter = raw.(*rate.Limiter)
			}
		}
	}

	// touching the entry keeps active keys from expiring
	l.limiters.SetDefault(key, limiter)
	return limiter.Allow()
}
