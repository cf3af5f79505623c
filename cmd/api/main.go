package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/breaker"
	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/logger"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/retry"
	"github.com/pulsewatch/pulsewatch/internal/scan"
	"github.com/pulsewatch/pulsewatch/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Environment)
	defer log.Close()

	// Redis is an optional archive for terminal scan results. Without it
	// the engine runs fully in memory.
	var redisClient *cache.RedisClient
	var archive scan.ResultArchive
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, running without result archive")
		} else {
			archive = scan.NewRedisArchive(redisClient)
			defer redisClient.Close()
		}
	}

	sources := source.NewRegistry()
	for _, platform := range cfg.Platforms {
		baseURL, ok := cfg.SourceBaseURLs[platform]
		if !ok || baseURL == "" {
			log.WithField("platform", platform).Warn("No source URL configured, platform disabled")
			continue
		}
		client := source.NewHTTPClient(platform, baseURL, cfg.SourceHTTPTimeout, log)
		sources.Register(source.NewRateLimited(client, cfg.SourceRateLimit, cfg.SourceRateBurst))
	}

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
	})

	recorder := metrics.NewRecorder(cfg.MetricsBufferSize)
	flusher := metrics.NewFlusher(recorder, cfg.MetricsFlushInterval, log)

	store := scan.NewStore(scan.StoreConfig{
		RetentionHorizon: cfg.RetentionHorizon,
		FailedResultTTL:  cfg.FailedResultTTL,
		ReaperInterval:   cfg.ReaperInterval,
		MaxCached:        1000,
	}, archive, log)

	orch := scan.NewOrchestrator(scan.Config{
		ScanTimeout: cfg.ScanTimeout,
		Retry: retry.Policy{
			MaxRetries:    cfg.RetryMaxAttempts,
			BaseDelay:     cfg.RetryBaseDelay,
			MaxDelay:      cfg.RetryMaxDelay,
			BackoffFactor: 1.5,
		},
		FetchCache: cache.Options{
			MaxSize:     cfg.CacheMaxSize,
			DefaultTTL:  cfg.CacheTTL,
			StaleWindow: cfg.CacheStaleWindow,
			Version:     cfg.CacheVersion,
		},
		DefaultPlatforms:    cfg.Platforms,
		DefaultLookbackDays: 30,
		MaxConcurrentFetch:  8,
	}, store, sources, breakers, recorder, flusher, log)
	orch.Start()

	server := api.NewServer(cfg, orch, redisClient, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	orch.Shutdown()
	log.Info("Shutdown complete")
}
