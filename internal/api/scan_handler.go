package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/scan"
)

// CreateScanRequest is the POST /api/v1/scans body.
type CreateScanRequest struct {
	UserID          string   `json:"user_id" binding:"required"`
	Platforms       []string `json:"platforms"`
	LookbackDays    int      `json:"lookback_days"`
	CompetitorIDs   []string `json:"competitor_ids"`
	IncludeOwnPosts bool     `json:"include_own_posts"`
	TopN            int      `json:"top_n"`
}

func (s *Server) handleCreateScan(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	scanID, err := s.orch.StartScan(req.UserID, models.ScanOptions{
		Platforms:       req.Platforms,
		LookbackDays:    req.LookbackDays,
		CompetitorIDs:   req.CompetitorIDs,
		IncludeOwnPosts: req.IncludeOwnPosts,
		TopN:            req.TopN,
	})
	if err != nil {
		if errors.Is(err, scan.ErrShuttingDown) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"scan_id": scanID,
		"status":  models.ScanStatusPending,
	})
}

func (s *Server) handleGetScan(c *gin.Context) {
	scanID := c.Param("scanId")

	result, err := s.orch.GetScanResult(scanID)
	if err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scan not found", "scan_id": scanID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInvalidateCache(c *gin.Context) {
	platform := c.Param("platform")
	userID := c.Param("userId")

	removed := s.orch.InvalidateUserCache(platform, userID)
	c.JSON(http.StatusOK, gin.H{
		"platform": platform,
		"user_id":  userID,
		"removed":  removed,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	window := 15 * time.Minute
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window duration"})
			return
		}
		window = parsed
	}

	c.JSON(http.StatusOK, s.orch.Metrics(window))
}
