// Package metrics keeps a bounded ring of operation outcomes and rolls them
// into summary statistics. It is a fixed-size in-memory buffer, not a
// database: once full, the oldest sample is dropped on every append.
package metrics

import (
	"sync"
	"time"
)

// DefaultBufferSize is the sample cap when none is configured.
const DefaultBufferSize = 1000

// Sample records one instrumented operation.
type Sample struct {
	Operation string    `json:"operation"`
	Source    string    `json:"source,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Success   bool      `json:"success"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
}

// Duration is the elapsed time of the sampled operation.
func (s Sample) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary aggregates samples over a trailing window. All rates are guarded
// against a zero-sample window.
type Summary struct {
	Window          time.Duration  `json:"window"`
	TotalOperations int            `json:"total_operations"`
	SuccessRate     float64        `json:"success_rate"`
	MeanDuration    time.Duration  `json:"mean_duration"`
	CacheHitRate    float64        `json:"cache_hit_rate"`
	PerOperation    map[string]int `json:"per_operation"`
	PerSource       map[string]int `json:"per_source"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// Recorder is the bounded sample buffer. Record never fails and never
// blocks on anything but its own mutex.
type Recorder struct {
	mu       sync.Mutex
	samples  []Sample
	head     int // next write position once the ring is full
	full     bool
	capacity int
	now      func() time.Time
}

// NewRecorder creates a recorder holding at most capacity samples.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Recorder{
		samples:  make([]Sample, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// SetClock overrides the recorder clock. Test use only.
func (r *Recorder) SetClock(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = fn
}

// Record appends a sample, dropping the oldest once the buffer is full.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		r.samples = append(r.samples, s)
		if len(r.samples) == r.capacity {
			r.full = true
		}
		return
	}
	r.samples[r.head] = s
	r.head = (r.head + 1) % r.capacity
}

// Len returns the number of buffered samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Summarize computes statistics over samples whose StartTime falls within
// the trailing window. It never fails; an empty window yields zeros.
func (r *Recorder) Summarize(window time.Duration) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-window)
	summary := Summary{
		Window:       window,
		PerOperation: make(map[string]int),
		PerSource:    make(map[string]int),
		GeneratedAt:  r.now(),
	}

	var (
		successes     int
		cacheHits     int
		totalDuration time.Duration
	)
	for _, s := range r.samples {
		if s.StartTime.Before(cutoff) {
			continue
		}
		summary.TotalOperations++
		summary.PerOperation[s.Operation]++
		if s.Source != "" {
			summary.PerSource[s.Source]++
		}
		if s.Success {
			successes++
		}
		if s.CacheHit {
			cacheHits++
		}
		totalDuration += s.Duration()
	}

	if summary.TotalOperations > 0 {
		n := float64(summary.TotalOperations)
		summary.SuccessRate = float64(successes) / n
		summary.CacheHitRate = float64(cacheHits) / n
		summary.MeanDuration = totalDuration / time.Duration(summary.TotalOperations)
	}
	return summary
}
