package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"

	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/stats"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    *sync.RWMutex
	rate  rate.Limit
	burst int
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the given burst
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		mu:    &sync.RWMutex{},
		rate:  r,
		burst: burst,
	}
}

// GetLimit returns the burst limit
func (i *IPRateLimiter) GetLimit() int {
	return i.burst
}

// AddIP returns the bucket for ip, creating it unless another request
// created it first
func (i *IPRateLimiter) AddIP(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, exists := i.ips[ip]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(i.rate, i.burst)
	i.ips[ip] = limiter
	return limiter
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.ips[ip]
	i.mu.RUnlock()

	if !exists {
		return i.AddIP(ip)
	}
	return limiter
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ips)
}

// RemainingTokens returns the whole tokens left for ip
func (i *IPRateLimiter) RemainingTokens(ip string) int {
	return int(math.Floor(i.GetLimiter(ip).Tokens()))
}

// clientIP strips the port from RemoteAddr so all connections of a client share a bucket
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests over the per-IP budget with 429
func RateLimitMiddleware(limiter *IPRateLimiter, s *stats.Stats) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			l := limiter.GetLimiter(ip)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.GetLimit()))
			if l.Allow() {
				s.RecordRateLimit(true)
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(math.Floor(l.Tokens()))))
				next.ServeHTTP(w, r)
				return
			}

			s.RecordRateLimit(false)
			log.Warnf("%s IP %s exceeded the rate limit", logcolors.LogRateLimit, ip)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too Many Requests"}`))
		})
	}
}
