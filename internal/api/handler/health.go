package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/api/response"
)

const pingTimeout = 2 * time.Second

// DBPinger checks connectivity to the row store.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to DBPinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	redis   DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler. redis may be nil when rate
// limiting is disabled.
func NewHealthHandler(db DBPinger, redis DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		version: version,
	}
}

type dependencyStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Database dependencyStatus `json:"database"`
	Redis    dependencyStatus `json:"redis"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Database: h.check(r.Context(), h.db, "database"),
		Redis:    h.check(r.Context(), h.redis, "redis"),
	}

	if (data.Database.Enabled && !data.Database.Connected) || (data.Redis.Enabled && !data.Redis.Connected) {
		data.Status = "degraded"
	}

	response.Success(w, http.StatusOK, data, requestID)
}

func (h *HealthHandler) check(ctx context.Context, p DBPinger, name string) dependencyStatus {
	if p == nil {
		return dependencyStatus{}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		middleware.Logger(ctx).Warn("health check failed", "dependency", name, "error", err)
		return dependencyStatus{Enabled: true}
	}
	return dependencyStatus{Enabled: true, Connected: true}
}
