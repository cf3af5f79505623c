package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

// StoreConfig tunes result retention.
type StoreConfig struct {
	RetentionHorizon time.Duration // age past which the reaper deletes results
	FailedResultTTL  time.Duration // short cache TTL so callers can read why a scan failed
	ReaperInterval   time.Duration
	MaxCached        int
}

// DefaultStoreConfig matches production retention.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		RetentionHorizon: 24 * time.Hour,
		FailedResultTTL:  5 * time.Minute,
		ReaperInterval:   time.Hour,
		MaxCached:        1000,
	}
}

// Store owns every ScanResult: in-flight and terminal. Reads go through the
// results cache first and fall back to the index, reconciling whichever
// side is missing. A background reaper evicts results past the retention
// horizon. The index supports concurrent reads during a sweep.
type Store struct {
	mu    sync.RWMutex
	index map[string]*models.ScanResult

	results *cache.Cache[string, *models.ScanResult]
	archive ResultArchive // optional

	cfg StoreConfig
	log logrus.FieldLogger
	now func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStore creates a store. archive may be nil.
func NewStore(cfg StoreConfig, archive ResultArchive, log logrus.FieldLogger) *Store {
	results := cache.New[string, *models.ScanResult](cache.Options{
		MaxSize:    cfg.MaxCached,
		DefaultTTL: cfg.RetentionHorizon,
		Version:    "v1",
	})
	return &Store{
		index:    make(map[string]*models.ScanResult),
		results:  results,
		archive:  archive,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// SetClock overrides the store clock. Test use only.
func (s *Store) SetClock(fn func() time.Time) {
	s.now = fn
}

// Put stores or replaces a result. Failed results get a short cache TTL so
// callers can still observe why they failed before the entry ages out.
func (s *Store) Put(result *models.ScanResult) {
	snapshot := result.Clone()

	s.mu.Lock()
	s.index[snapshot.ScanID] = snapshot
	s.mu.Unlock()

	if snapshot.Status == models.ScanStatusFailed {
		s.results.SetWithTTL(snapshot.ScanID, snapshot, s.cfg.FailedResultTTL)
	} else {
		s.results.Set(snapshot.ScanID, snapshot)
	}

	if s.archive != nil && snapshot.Status.Terminal() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ttl := s.cfg.RetentionHorizon
		if snapshot.Status == models.ScanStatusFailed {
			ttl = s.cfg.FailedResultTTL
		}
		if err := s.archive.Save(ctx, snapshot, ttl); err != nil {
			s.log.WithError(err).WithField("scan_id", snapshot.ScanID).Warn("Failed to archive scan result")
		}
	}
}

// Get returns a copy of the result for scanID, cache-first with index
// fallback and the archive as a last resort. A hit on only one side
// repopulates the other.
func (s *Store) Get(scanID string) (*models.ScanResult, bool) {
	if result, ok := s.results.Get(scanID); ok {
		s.mu.RLock()
		_, indexed := s.index[scanID]
		s.mu.RUnlock()
		if !indexed {
			s.mu.Lock()
			s.index[scanID] = result
			s.mu.Unlock()
		}
		return result.Clone(), true
	}

	s.mu.RLock()
	result, ok := s.index[scanID]
	s.mu.RUnlock()
	if !ok {
		return s.loadFromArchive(scanID)
	}
	// Cache side was evicted or expired early; restore it unless the entry
	// is already past retention (the reaper will pick it up).
	if result.Status != models.ScanStatusFailed {
		s.results.Set(scanID, result)
	}
	return result.Clone(), true
}

// loadFromArchive recovers a result that dropped out of memory, typically
// after a restart. A recovered result is reindexed so the next read stays
// local.
func (s *Store) loadFromArchive(scanID string) (*models.ScanResult, bool) {
	if s.archive == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := s.archive.Load(ctx, scanID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.WithError(err).WithField("scan_id", scanID).Warn("Failed to load archived scan result")
		}
		return nil, false
	}

	s.mu.Lock()
	s.index[scanID] = result
	s.mu.Unlock()
	if result.Status == models.ScanStatusFailed {
		s.results.SetWithTTL(scanID, result, s.cfg.FailedResultTTL)
	} else {
		s.results.Set(scanID, result)
	}
	return result.Clone(), true
}

// Len returns the number of indexed results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// StartReaper sweeps immediately and then on every interval until Stop.
func (s *Store) StartReaper() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.reap()

		ticker := time.NewTicker(s.cfg.ReaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.reap()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// reap deletes results older than the retention horizon from the index, the
// cache and the archive. Failures are logged; the next run retries.
func (s *Store) reap() {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Scan reaper panicked")
		}
	}()

	cutoff := s.now().Add(-s.cfg.RetentionHorizon)

	s.mu.RLock()
	expired := make([]string, 0)
	for id, result := range s.index {
		if result.CreatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	s.mu.Lock()
	for _, id := range expired {
		delete(s.index, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.results.Delete(id)
		if s.archive != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.archive.Remove(ctx, id); err != nil {
				s.log.WithError(err).WithField("scan_id", id).Warn("Failed to remove archived scan result")
			}
			cancel()
		}
	}

	s.log.WithField("reaped", len(expired)).Info("Reaped expired scan results")
}

// Stop halts the reaper and clears all state. Idempotent.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()

	s.mu.Lock()
	s.index = make(map[string]*models.ScanResult)
	s.mu.Unlock()
	s.results.Clear()
}
