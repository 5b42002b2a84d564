package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dn5s/lthread/internal/logger"
	"github.com/dn5s/lthread/internal/service"
)

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lthread_rate_limited_total",
	Help: "Total number of requests rejected by the rate limiter",
}, []string{"action"})

// RateLimit gates a write endpoint behind the distributed limiter. Every
// request must pass both the General gate and its action-class gate; either
// one can reject independently.
func RateLimit(limiter *service.RateLimiter, action service.LimitAction, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			identity := ClientIdentity(r)
			for _, gate := range []service.LimitAction{service.ActionGeneral, action} {
				allowed, err := limiter.Allow(r.Context(), identity, gate)
				if err != nil {
					logger.Log.Error("rate limiter unavailable", "error", err)
					http.Error(w, "Storage temporarily unavailable", http.StatusServiceUnavailable)
					return
				}
				if !allowed {
					rateLimited.WithLabelValues(string(gate)).Inc()
					http.Error(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
					return
				}
				if gate == action {
					break
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentity resolves the opaque string the limiter keys buckets on: the
// first valid hop of the forwarded-for chain, falling back to the peer
// address. The limiter itself never parses network headers.
func ClientIdentity(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(hop); net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
