// Package scan implements the resilient scan-orchestration engine: the scan
// lifecycle state machine, the fan-out to per-platform data sources through
// cache, retry and circuit breaker, and the store that callers poll.
package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/pulsewatch/internal/analyzer"
	"github.com/pulsewatch/pulsewatch/internal/breaker"
	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/retry"
	"github.com/pulsewatch/pulsewatch/internal/source"
)

// Config bounds one orchestrator.
type Config struct {
	ScanTimeout         time.Duration
	Retry               retry.Policy
	FetchCache          cache.Options
	DefaultPlatforms    []string
	DefaultLookbackDays int
	MaxConcurrentFetch  int
}

// DefaultConfig matches production behavior.
func DefaultConfig() Config {
	return Config{
		ScanTimeout: 5 * time.Minute,
		Retry:       retry.DefaultPolicy(),
		FetchCache: cache.Options{
			MaxSize:     500,
			DefaultTTL:  15 * time.Minute,
			StaleWindow: 30 * time.Minute,
			Version:     "v1",
		},
		DefaultLookbackDays: 30,
		MaxConcurrentFetch:  8,
	}
}

// Orchestrator owns the scan lifecycle. StartScan returns immediately; the
// scan body runs in its own goroutine, races a timeout, and writes its
// outcome back through the Store.
type Orchestrator struct {
	cfg        Config
	store      *Store
	sources    *source.Registry
	breakers   *breaker.Registry
	fetchCache *cache.Cache[string, []models.Item]
	recorder   *metrics.Recorder
	flusher    *metrics.Flusher
	log        logrus.FieldLogger

	rootCtx context.Context
	cancel  context.CancelFunc

	wg           sync.WaitGroup
	closeMu      sync.Mutex // orders StartScan's closed check + wg.Add against Shutdown
	closed       bool
	shutdownOnce sync.Once
}

// NewOrchestrator wires the engine together. A breaker is registered up
// front for every platform the source registry knows.
func NewOrchestrator(
	cfg Config,
	store *Store,
	sources *source.Registry,
	breakers *breaker.Registry,
	recorder *metrics.Recorder,
	flusher *metrics.Flusher,
	log logrus.FieldLogger,
) *Orchestrator {
	fetchCache := cache.New[string, []models.Item](cfg.FetchCache)

	for _, platform := range sources.Platforms() {
		breakers.Register(serviceKey(platform))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		sources:    sources,
		breakers:   breakers,
		fetchCache: fetchCache,
		recorder:   recorder,
		flusher:    flusher,
		log:        log,
		rootCtx:    ctx,
		cancel:     cancel,
	}
}

// Start launches the store reaper and the metrics flusher.
func (o *Orchestrator) Start() {
	o.store.StartReaper()
	if o.flusher != nil {
		o.flusher.Start()
	}
}

// serviceKey is the circuit breaker key for a platform.
func serviceKey(platform string) string {
	return platform + "_api"
}

// fetchCacheKey namespaces cached fetches under platform and account so
// InvalidateUserCache can drop them by prefix.
func fetchCacheKey(platform, accountID string, lookbackDays int) string {
	return fmt.Sprintf("%s:user:%s:items:%d", platform, accountID, lookbackDays)
}

// StartScan creates a pending ScanResult, stores it, and schedules the scan
// body without blocking the caller. The returned id is immediately pollable.
func (o *Orchestrator) StartScan(userID string, opts models.ScanOptions) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	if len(opts.Platforms) == 0 {
		opts.Platforms = append([]string(nil), o.cfg.DefaultPlatforms...)
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = o.cfg.DefaultLookbackDays
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if !opts.IncludeOwnPosts && len(opts.CompetitorIDs) == 0 {
		opts.IncludeOwnPosts = true
	}

	result := &models.ScanResult{
		ScanID:    uuid.NewString(),
		UserID:    userID,
		Status:    models.ScanStatusPending,
		Options:   opts,
		CreatedAt: time.Now(),
	}
	// The closed check and wg.Add must happen under the same lock Shutdown
	// takes before wg.Wait, or a scan goroutine could launch after the wait
	// returned and write into a cleared store.
	o.closeMu.Lock()
	if o.closed {
		o.closeMu.Unlock()
		return "", ErrShuttingDown
	}
	o.store.Put(result)
	o.wg.Add(1)
	o.closeMu.Unlock()

	go func() {
		defer o.wg.Done()
		o.runScan(result)
	}()

	return result.ScanID, nil
}

// GetScanResult returns the scan for id or ErrNotFound.
func (o *Orchestrator) GetScanResult(scanID string) (*models.ScanResult, error) {
	if result, ok := o.store.Get(scanID); ok {
		return result, nil
	}
	return nil, ErrNotFound
}

// InvalidateUserCache drops every cached fetch for the platform+user
// namespace and returns the number of entries removed.
func (o *Orchestrator) InvalidateUserCache(platform, userID string) int {
	prefix := platform + ":user:" + userID + ":"
	return o.fetchCache.InvalidateMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// runScan is the scan body. It owns its ScanResult exclusively until the
// terminal Put; callers only ever see store snapshots.
func (o *Orchestrator) runScan(result *models.ScanResult) {
	log := o.log.WithFields(logrus.Fields{
		"scan_id": result.ScanID,
		"user_id": result.UserID,
	})

	start := time.Now()
	result.Status = models.ScanStatusInProgress
	o.store.Put(result)
	log.WithField("platforms", result.Options.Platforms).Info("Scan started")

	ctx, cancel := context.WithTimeout(o.rootCtx, o.cfg.ScanTimeout)
	defer cancel()

	// Precondition: every requested platform must have a client. This fails
	// the whole scan before any fetching starts.
	for _, platform := range result.Options.Platforms {
		if _, ok := o.sources.Get(platform); !ok {
			o.finalizeFailure(result, &ConfigurationError{Platform: platform}, log)
			o.recordScan(start, false)
			return
		}
	}

	done := make(chan fetchOutcome, 1)
	go func() {
		done <- o.fetchAll(ctx, result.UserID, result.Options)
	}()

	select {
	case out := <-done:
		if out.attempted > 0 && out.failed == out.attempted {
			o.finalizeFailure(result, fmt.Errorf("all sources failed: %w", out.lastErr), log)
			o.recordScan(start, false)
			return
		}
		o.finalizeSuccess(result, out.items, log)
		o.recordScan(start, true)

	case <-ctx.Done():
		// Timeout or shutdown wins the race; in-flight fetch results are
		// discarded. Fetch goroutines see the cancelled context and drain.
		var cause error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = &TimeoutError{ScanID: result.ScanID, Limit: o.cfg.ScanTimeout.String()}
		} else {
			cause = ErrShuttingDown
		}
		o.finalizeFailure(result, cause, log)
		o.recordScan(start, false)
	}
}

type fetchOutcome struct {
	items     []models.Item
	attempted int
	failed    int
	lastErr   error
}

// fetchAll fans out one fetch task per platform × account (own posts plus
// each competitor) and joins the results. A failed task contributes zero
// items and never aborts its siblings.
func (o *Orchestrator) fetchAll(ctx context.Context, userID string, opts models.ScanOptions) fetchOutcome {
	var (
		mu  sync.Mutex
		out fetchOutcome
	)

	g := &errgroup.Group{}
	if o.cfg.MaxConcurrentFetch > 0 {
		g.SetLimit(o.cfg.MaxConcurrentFetch)
	}

	collect := func(platform, accountID string, items []models.Item, err error) {
		mu.Lock()
		defer mu.Unlock()
		out.attempted++
		if err != nil {
			out.failed++
			out.lastErr = err
			o.log.WithError(err).WithFields(logrus.Fields{
				"platform": platform,
				"account":  accountID,
			}).Warn("Source fetch failed, contributing zero items")
			return
		}
		out.items = append(out.items, items...)
	}

	for _, platform := range opts.Platforms {
		client, ok := o.sources.Get(platform)
		if !ok {
			continue // checked upstream
		}

		if opts.IncludeOwnPosts {
			platform, client := platform, client
			g.Go(func() error {
				items, err := o.fetchOne(ctx, client, platform, userID, false, opts.LookbackDays)
				collect(platform, userID, items, err)
				return nil
			})
		}

		for _, peerID := range opts.CompetitorIDs {
			platform, client, peerID := platform, client, peerID
			g.Go(func() error {
				items, err := o.fetchOne(ctx, client, platform, peerID, true, opts.LookbackDays)
				collect(platform, peerID, items, err)
				return nil
			})
		}
	}

	_ = g.Wait() // tasks never return errors; failures are collected above
	return out
}

// fetchOne is the single protected fetch path:
// cache -> retry -> breaker -> client. A breaker that is open fails fast
// with zero items rather than touching the source.
func (o *Orchestrator) fetchOne(ctx context.Context, client source.Client, platform, accountID string, peer bool, lookbackDays int) ([]models.Item, error) {
	start := time.Now()
	key := fetchCacheKey(platform, accountID, lookbackDays)
	svc := serviceKey(platform)

	items, loaded, err := o.fetchCache.GetOrLoad(ctx, key, func(ctx context.Context) ([]models.Item, error) {
		return retry.Do(ctx, o.cfg.Retry, func(ctx context.Context) ([]models.Item, error) {
			if !o.breakers.CanProceed(svc) {
				return []models.Item{}, nil
			}
			var (
				fetched  []models.Item
				fetchErr error
			)
			if peer {
				fetched, fetchErr = client.FetchPeerItems(ctx, accountID, lookbackDays)
			} else {
				fetched, fetchErr = client.FetchUserItems(ctx, accountID, lookbackDays)
			}
			if fetchErr != nil {
				o.breakers.RecordFailure(svc)
				return nil, fetchErr
			}
			o.breakers.RecordSuccess(svc)
			return fetched, nil
		})
	})

	sample := metrics.Sample{
		Operation: "fetch_items",
		Source:    platform,
		StartTime: start,
		EndTime:   time.Now(),
		Success:   err == nil,
		CacheHit:  !loaded,
	}
	if err != nil {
		sample.Error = err.Error()
	}
	o.recorder.Record(sample)

	return items, err
}

func (o *Orchestrator) finalizeSuccess(result *models.ScanResult, items []models.Item, log logrus.FieldLogger) {
	result.TotalItems = len(items)
	result.AverageEngagement = analyzer.ComputeAverageEngagement(items)
	result.PeakTimes = analyzer.ComputePeakTimes(items)
	result.TopItems = analyzer.ScoreAndRankTopItems(items, result.Options.TopN)

	now := time.Now()
	result.CompletedAt = &now
	result.Status = models.ScanStatusCompleted
	o.store.Put(result)

	log.WithFields(logrus.Fields{
		"total_items":        result.TotalItems,
		"average_engagement": result.AverageEngagement,
		"duration":           now.Sub(result.CreatedAt).String(),
	}).Info("Scan completed")
}

func (o *Orchestrator) finalizeFailure(result *models.ScanResult, cause error, log logrus.FieldLogger) {
	now := time.Now()
	result.CompletedAt = &now
	result.Status = models.ScanStatusFailed
	result.Error = cause.Error()
	o.store.Put(result)

	log.WithError(cause).Warn("Scan failed")
}

func (o *Orchestrator) recordScan(start time.Time, success bool) {
	o.recorder.Record(metrics.Sample{
		Operation: "scan",
		StartTime: start,
		EndTime:   time.Now(),
		Success:   success,
	})
}

// BreakerSnapshots exposes breaker states for health reporting.
func (o *Orchestrator) BreakerSnapshots() []breaker.Snapshot {
	return o.breakers.Snapshots()
}

// CacheSize returns the number of entries in the fetch cache.
func (o *Orchestrator) CacheSize() int {
	return o.fetchCache.Len()
}

// StoreSize returns the number of tracked scan results.
func (o *Orchestrator) StoreSize() int {
	return o.store.Len()
}

// Metrics summarizes recorded operations over the trailing window.
func (o *Orchestrator) Metrics(window time.Duration) metrics.Summary {
	return o.recorder.Summarize(window)
}

// Shutdown stops the engine: in-flight scans are cancelled and finalized,
// the reaper and metrics timers stop, and in-memory state is cleared.
// Idempotent and safe to call concurrently.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.closeMu.Lock()
		o.closed = true
		o.closeMu.Unlock()
		o.cancel()
		o.wg.Wait()
		if o.flusher != nil {
			o.flusher.Stop()
		}
		o.store.Stop()
		o.fetchCache.Clear()
		o.log.Info("Scan orchestrator shut down")
	})
}
