package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Afonso75/QZeroN-sub002/internal/clock"
)

type RateLimitConfig struct {
	IPPerMinute       int
	IPBurst           int
	BusinessPerMinute int
	BusinessBurst     int
}

type RateLimiter struct {
	ipLimiter       *tokenLimiter
	businessLimiter *tokenLimiter
}

func NewRateLimiter(cfg RateLimitConfig, clk clock.Clock) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &RateLimiter{
		ipLimiter:       newTokenLimiter(cfg.IPPerMinute, cfg.IPBurst, clk),
		businessLimiter: newTokenLimiter(cfg.BusinessPerMinute, cfg.BusinessBurst, clk),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, requestID(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		business := strings.TrimSpace(r.Header.Get(businessHeader))
		if business != "" && !l.businessLimiter.allow(business) {
			writeError(w, requestID(r), http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Prune drops buckets idle long enough to have refilled completely.
func (l *RateLimiter) Prune() {
	l.ipLimiter.prune()
	l.businessLimiter.prune()
}

type tokenLimiter struct {
	mu     sync.Mutex
	clock  clock.Clock
	rate   float64
	burst  float64
	bucket map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newTokenLimiter(perMinute, burst int, clk clock.Clock) *tokenLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &tokenLimiter{
		clock:  clk,
		rate:   float64(perMinute) / 60.0,
		burst:  float64(burst),
		bucket: make(map[string]*bucket),
	}
}

func (l *tokenLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, ok := l.bucket[key]
	if !ok {
		l.bucket[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(l.burst, b.tokens+elapsed*l.rate)
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens -= 1
	return true
}

func (l *tokenLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	full := time.Duration(l.burst / l.rate * float64(time.Second))
	for key, b := range l.bucket {
		if now.Sub(b.last) >= full {
			delete(l.bucket, key)
		}
	}
}

func (l *tokenLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bucket)
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
