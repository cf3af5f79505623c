// Package api exposes the scan engine over HTTP: scan lifecycle endpoints,
// cache invalidation, health and metrics reporting, and a WebSocket stream
// of engine events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/logger"
	"github.com/pulsewatch/pulsewatch/internal/scan"
)

// Server is the HTTP front end over one Orchestrator.
type Server struct {
	cfg   *config.Config
	orch  *scan.Orchestrator
	redis *cache.RedisClient
	log   *logger.Logger
	hub   *Hub

	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router and wires the WebSocket hub to the logger's
// event bus. redis may be nil when no archive is configured.
func NewServer(cfg *config.Config, orch *scan.Orchestrator, redis *cache.RedisClient, log *logger.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:    cfg,
		orch:   orch,
		redis:  redis,
		log:    log,
		hub:    NewHub(log),
		engine: engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ws/events", s.handleWebSocket)

	v1 := s.engine.Group("/api/v1")
	{
		scans := v1.Group("/scans")
		{
			scans.POST("", s.handleCreateScan)
			scans.GET("/:scanId", s.handleGetScan)
		}
		v1.DELETE("/cache/:platform/users/:userId", s.handleInvalidateCache)
		v1.GET("/metrics", s.handleMetrics)
	}
}

// requestLogger logs each request through the structured logger so HTTP
// traffic also reaches event bus subscribers.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}

// Run starts the hub, the bus bridge, and the HTTP listener. Blocks until
// the listener stops.
func (s *Server) Run() error {
	go s.hub.Run()
	go bridgeEvents(s.log.Events(), s.hub)

	s.http = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.log.WithField("port", s.cfg.Port).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP listener and stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.hub.Stop()
	return err
}
