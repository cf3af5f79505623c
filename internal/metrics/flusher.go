package metrics

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Flusher periodically summarizes the recorder and emits the result to the
// log stream. It is a scheduled side effect, not request-driven.
type Flusher struct {
	recorder *Recorder
	interval time.Duration
	log      logrus.FieldLogger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// NewFlusher creates a flusher emitting every interval.
func NewFlusher(recorder *Recorder, interval time.Duration, log logrus.FieldLogger) *Flusher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Flusher{
		recorder: recorder,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop. Starting twice is a no-op.
func (f *Flusher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return
	}
	f.running = true

	f.wg.Add(1)
	go f.loop()
}

func (f *Flusher) loop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.emit()
		case <-f.stopChan:
			return
		}
	}
}

func (f *Flusher) emit() {
	summary := f.recorder.Summarize(f.interval)
	f.log.WithFields(logrus.Fields{
		"total_operations": summary.TotalOperations,
		"success_rate":     summary.SuccessRate,
		"mean_duration_ms": summary.MeanDuration.Milliseconds(),
		"cache_hit_rate":   summary.CacheHitRate,
		"per_operation":    summary.PerOperation,
		"per_source":       summary.PerSource,
	}).Info("metrics summary")
}

// Stop halts the loop and waits for it to exit. Idempotent.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopChan)
	})
	f.wg.Wait()

	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}
