package server

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per remote host.
type HostRateLimiter struct {
	limit rate.Limit
	burst int
	hosts sync.Map // map[string]*rate.Limiter
}

// NewHostRateLimiter returns a limiter allowing perSecond requests per host
// with the given burst. A non-positive perSecond disables limiting.
func NewHostRateLimiter(perSecond float64, burst int) *HostRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostRateLimiter{limit: limit, burst: burst}
}

func (l *HostRateLimiter) limiter(host string) *rate.Limiter {
	if existing, ok := l.hosts.Load(host); ok {
		return existing.(*rate.Limiter)
	}
	actual, _ := l.hosts.LoadOrStore(host, rate.NewLimiter(l.limit, l.burst))
	return actual.(*rate.Limiter)
}

// Allow reports whether a request from host may proceed now.
func (l *HostRateLimiter) Allow(host string) bool {
	return l.limiter(host).Allow()
}

// Middleware rejects requests over the host's budget with 429 and a
// Retry-After hint.
func (l *HostRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := remoteHost(r)
		lim := l.limiter(host)
		if lim.Allow() {
			next.ServeHTTP(w, r)
			return
		}

		AddLogField(r.Context(), "rate_limited", host)
		retry := 1
		if l.limit > 0 && l.limit != rate.Inf {
			retry = int(math.Ceil(1 / float64(l.limit)))
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
