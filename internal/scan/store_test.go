package scan

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestStore() (*Store, *time.Time) {
	s := NewStore(StoreConfig{
		RetentionHorizon: 24 * time.Hour,
		FailedResultTTL:  5 * time.Minute,
		ReaperInterval:   time.Hour,
		MaxCached:        100,
	}, nil, testLog())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	s.SetClock(func() time.Time { return *clock })
	return s, clock
}

func pendingResult(id string, createdAt time.Time) *models.ScanResult {
	return &models.ScanResult{
		ScanID:    id,
		UserID:    "u1",
		Status:    models.ScanStatusPending,
		CreatedAt: createdAt,
	}
}

func TestStorePutGet(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		s.Put(pendingResult("scan-1", *clock))
		got, ok := s.Get("scan-1")
		if !ok {
			t.Fatal("Expected stored result")
		}
		if got.ScanID != "scan-1" || got.Status != models.ScanStatusPending {
			t.Errorf("Unexpected result: %+v", got)
		}
	})

	t.Run("UnknownIDMisses", func(t *testing.T) {
		s, _ := newTestStore()
		defer s.Stop()

		if _, ok := s.Get("nope"); ok {
			t.Error("Unknown id must miss")
		}
	})

	t.Run("ReadsAreSnapshots", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		s.Put(pendingResult("scan-1", *clock))
		first, _ := s.Get("scan-1")
		first.Status = models.ScanStatusFailed
		first.TopItems = append(first.TopItems, models.Item{ID: "injected"})

		second, _ := s.Get("scan-1")
		if second.Status != models.ScanStatusPending || len(second.TopItems) != 0 {
			t.Error("Mutating a returned result must not affect the store")
		}
	})

	t.Run("PutReplacesByScanID", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		r := pendingResult("scan-1", *clock)
		s.Put(r)
		r.Status = models.ScanStatusCompleted
		r.TotalItems = 7
		s.Put(r)

		got, _ := s.Get("scan-1")
		if got.Status != models.ScanStatusCompleted || got.TotalItems != 7 {
			t.Errorf("Expected updated result, got %+v", got)
		}
		if s.Len() != 1 {
			t.Errorf("Replacing must not grow the index, got %d", s.Len())
		}
	})

	t.Run("FailedResultReadableFromIndexAfterCacheTTL", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		r := pendingResult("scan-1", *clock)
		r.Status = models.ScanStatusFailed
		r.Error = "all sources failed"
		s.Put(r)

		// Past the failed-result cache TTL but inside retention
		*clock = clock.Add(10 * time.Minute)
		got, ok := s.Get("scan-1")
		if !ok {
			t.Fatal("Failed result must stay readable until the reaper removes it")
		}
		if got.Error != "all sources failed" {
			t.Errorf("Expected failure reason, got %q", got.Error)
		}
	})
}

func TestStoreReaper(t *testing.T) {
	t.Run("RemovesResultsPastRetention", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		s.Put(pendingResult("old", clock.Add(-25*time.Hour)))
		s.Put(pendingResult("recent", clock.Add(-time.Hour)))

		s.reap()

		if _, ok := s.Get("old"); ok {
			t.Error("Result past the retention horizon must be reaped")
		}
		if _, ok := s.Get("recent"); !ok {
			t.Error("Result inside retention must survive")
		}
	})

	t.Run("ExactCutoffSurvives", func(t *testing.T) {
		s, clock := newTestStore()
		defer s.Stop()

		s.Put(pendingResult("edge", clock.Add(-24*time.Hour)))
		s.reap()

		if _, ok := s.Get("edge"); !ok {
			t.Error("Result exactly at the horizon must not be reaped")
		}
	})
}

// memArchive is an in-memory ResultArchive for store tests.
type memArchive struct {
	saved   map[string]*models.ScanResult
	loads   int
	loadErr error
}

func newMemArchive() *memArchive {
	return &memArchive{saved: make(map[string]*models.ScanResult)}
}

func (a *memArchive) Save(ctx context.Context, result *models.ScanResult, ttl time.Duration) error {
	a.saved[result.ScanID] = result.Clone()
	return nil
}

func (a *memArchive) Load(ctx context.Context, scanID string) (*models.ScanResult, error) {
	a.loads++
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	result, ok := a.saved[scanID]
	if !ok {
		return nil, ErrNotFound
	}
	return result.Clone(), nil
}

func (a *memArchive) Remove(ctx context.Context, scanID string) error {
	delete(a.saved, scanID)
	return nil
}

func TestStoreArchiveFallback(t *testing.T) {
	newArchivedStore := func(t *testing.T, archive *memArchive) (*Store, *time.Time) {
		t.Helper()
		s := NewStore(StoreConfig{
			RetentionHorizon: 24 * time.Hour,
			FailedResultTTL:  5 * time.Minute,
			ReaperInterval:   time.Hour,
			MaxCached:        100,
		}, archive, testLog())
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		clock := &now
		s.SetClock(func() time.Time { return *clock })
		t.Cleanup(s.Stop)
		return s, clock
	}

	t.Run("RecoversResultDroppedFromMemory", func(t *testing.T) {
		archive := newMemArchive()
		s, clock := newArchivedStore(t, archive)

		r := pendingResult("scan-1", *clock)
		r.Status = models.ScanStatusCompleted
		r.TotalItems = 4
		s.Put(r)

		// Simulate a restart: memory gone, archive intact.
		s.mu.Lock()
		s.index = make(map[string]*models.ScanResult)
		s.mu.Unlock()
		s.results.Clear()

		got, ok := s.Get("scan-1")
		if !ok {
			t.Fatal("Expected the archive to back the read")
		}
		if got.TotalItems != 4 || got.Status != models.ScanStatusCompleted {
			t.Errorf("Unexpected recovered result: %+v", got)
		}

		// Recovery reindexes; the next read stays local.
		if _, ok := s.Get("scan-1"); !ok {
			t.Fatal("Recovered result must be readable again")
		}
		if archive.loads != 1 {
			t.Errorf("Expected a single archive load, got %d", archive.loads)
		}
	})

	t.Run("MissEverywhereStaysAMiss", func(t *testing.T) {
		archive := newMemArchive()
		s, _ := newArchivedStore(t, archive)

		if _, ok := s.Get("nope"); ok {
			t.Error("Unknown id must miss even with an archive configured")
		}
		if archive.loads != 1 {
			t.Errorf("Expected the archive to be consulted once, got %d loads", archive.loads)
		}
	})

	t.Run("ArchiveErrorDegradesToMiss", func(t *testing.T) {
		archive := newMemArchive()
		archive.loadErr = errors.New("connection refused")
		s, _ := newArchivedStore(t, archive)

		if _, ok := s.Get("scan-1"); ok {
			t.Error("A failing archive must not fabricate a hit")
		}
	})
}

func TestStoreStop(t *testing.T) {
	s, clock := newTestStore()
	s.StartReaper()
	s.Put(pendingResult("scan-1", *clock))

	s.Stop()
	if _, ok := s.Get("scan-1"); ok {
		t.Error("Stop must clear stored results")
	}

	// Idempotent
	s.Stop()
	s.Stop()
}
