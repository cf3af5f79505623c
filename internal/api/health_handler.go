package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsewatch/pulsewatch/internal/breaker"
)

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status        string             `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Breakers      []breaker.Snapshot `json:"breakers"`
	CacheEntries  int                `json:"cache_entries"`
	TrackedScans  int                `json:"tracked_scans"`
	EventClients  int                `json:"event_clients"`
	ResultArchive string             `json:"result_archive"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Breakers:      s.orch.BreakerSnapshots(),
		CacheEntries:  s.orch.CacheSize(),
		TrackedScans:  s.orch.StoreSize(),
		EventClients:  s.hub.ClientCount(),
		ResultArchive: "not_configured",
	}

	// An open breaker or an unreachable archive degrades but does not fail
	// the service; scans still run against the remaining sources.
	for _, snap := range resp.Breakers {
		if snap.State == breaker.Open.String() {
			resp.Status = "degraded"
			break
		}
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Health(ctx); err != nil {
			resp.ResultArchive = "unavailable"
			resp.Status = "degraded"
		} else {
			resp.ResultArchive = "healthy"
		}
	}

	c.JSON(http.StatusOK, resp)
}
