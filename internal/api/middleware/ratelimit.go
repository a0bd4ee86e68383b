package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"innovate_api/internal/common"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	visitors sync.Map // ip -> *visitor
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	v, ok := l.visitors.Load(ip)
	if !ok {
		v, _ = l.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(l.now().UnixNano())
	return vis.limiter
}

// Cleanup drops limiters for clients idle longer than the TTL.
func (l *IPRateLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL).UnixNano()
	l.visitors.Range(func(key, value interface{}) bool {
		if value.(*visitor).lastSeen.Load() < cutoff {
			l.visitors.Delete(key)
		}
		return true
	})
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			common.RespondWithJSON(w, http.StatusTooManyRequests, common.ErrorResponse{
				Error: "Too many requests, slow down",
				Code:  "RATE_LIMITED",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
