package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/momentokidspass/mkp/internal/api/response"
	"github.com/momentokidspass/mkp/internal/ratelimit"
)

// RateLimit returns middleware that takes one token per request from the
// bucket of the client IP and path. Limiter errors let the request through.
// onLimited, when non-nil, is called for every rejected request.
func RateLimit(l ratelimit.Limiter, onLimited func(path string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r) + ":" + r.Method + " " + r.URL.Path

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				Logger(r.Context()).Warn("rate limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

			if !d.Allowed {
				secs := int(math.Ceil(float64(d.RetryAfter) / float64(time.Second)))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimited != nil {
					onLimited(r.URL.Path)
				}
				response.Fail(w, response.RateLimited, nil, GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the host part of RemoteAddr, as resolved by ClientIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return host
}
