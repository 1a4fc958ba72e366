package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentokidspass/mkp/internal/api/handler"
)

// mockPinger implements handler.DBPinger for testing.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

func TestHealthHandler_Healthy(t *testing.T) {
	// Arrange
	h := handler.NewHealthHandler(&mockPinger{}, &mockPinger{}, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Act
	h.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	data := dataOf(t, w)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "0.1.0", data["version"])

	db := data["database"].(map[string]interface{})
	assert.Equal(t, true, db["enabled"])
	assert.Equal(t, true, db["connected"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	// Arrange
	h := handler.NewHealthHandler(&mockPinger{err: errors.New("connection refused")}, nil, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Act
	h.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "degraded", data["status"])

	db := data["database"].(map[string]interface{})
	assert.Equal(t, false, db["connected"])
}

func TestHealthHandler_RedisDisabled(t *testing.T) {
	// Arrange
	h := handler.NewHealthHandler(&mockPinger{}, nil, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	// Act
	h.ServeHTTP(w, req)

	// Assert
	data := dataOf(t, w)
	assert.Equal(t, "healthy", data["status"])

	rdb := data["redis"].(map[string]interface{})
	assert.Equal(t, false, rdb["enabled"])
}

func TestHealthHandler_RedisDown(t *testing.T) {
	pinger := handler.PingFunc(func(context.Context) error { return errors.New("i/o timeout") })
	h := handler.NewHealthHandler(&mockPinger{}, pinger, "0.1.0")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, "degraded", dataOf(t, w)["status"])
}
