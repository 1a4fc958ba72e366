package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/ratelimit"
)

type mockLimiter struct {
	allowFn func(ctx context.Context, key string) (ratelimit.Decision, error)
	keys    []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	m.keys = append(m.keys, key)
	if m.allowFn != nil {
		return m.allowFn(ctx, key)
	}
	return ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}, nil
}

func TestRateLimit_Allowed(t *testing.T) {
	// Arrange
	limiter := &mockLimiter{}
	handler := middleware.RateLimit(limiter, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"ip:203.0.113.7:POST /auth/login"}, limiter.keys)
}

func TestRateLimit_Rejected(t *testing.T) {
	// Arrange
	limiter := &mockLimiter{
		allowFn: func(context.Context, string) (ratelimit.Decision, error) {
			return ratelimit.Decision{Allowed: false, Limit: 10, Remaining: 0, RetryAfter: 1500 * time.Millisecond}, nil
		},
	}
	var limitedPath string
	handler := middleware.RateLimit(limiter, func(path string) { limitedPath = path })(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
	assert.Equal(t, "/auth/login", limitedPath)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	// Arrange
	limiter := &mockLimiter{
		allowFn: func(context.Context, string) (ratelimit.Decision, error) {
			return ratelimit.Decision{}, errors.New("connection refused")
		},
	}
	handler := middleware.RateLimit(limiter, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimit_NilLimiter(t *testing.T) {
	handler := middleware.RateLimit(nil, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
