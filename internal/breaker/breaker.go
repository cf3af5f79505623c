// Package breaker provides per-service-key circuit breakers. Each external
// platform gets its own breaker so a failing source never poisons another.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	Closed   State = iota // normal operation, calls pass through
	Open                  // calls rejected immediately
	HalfOpen              // probing phase after the reset timeout
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the thresholds shared by all breakers in a registry.
type Config struct {
	FailureThreshold int           // consecutive failures in Closed that trip the breaker
	SuccessThreshold int           // successes in HalfOpen needed to close
	ResetTimeout     time.Duration // how long Open lasts before probing
}

// DefaultConfig matches the per-source defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     60 * time.Second,
	}
}

// breaker is the state for one service key. failureCount is meaningful only
// in Closed, successCount only in HalfOpen.
type breaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastStateChange time.Time
}

// Snapshot is a read-only view of one breaker for health reporting.
type Snapshot struct {
	Key             string    `json:"key"`
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastStateChange time.Time `json:"last_state_change"`
}

// Registry holds one breaker per service key. Keys are registered up front;
// operations on unknown keys are permissive no-ops. Each breaker has its own
// lock, so independent services never serialize on each other.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*breaker
	cfg      Config
	now      func() time.Time
}

// NewRegistry creates a registry with the given thresholds.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*breaker),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock overrides the registry clock. Test use only; call before any
// breaker operation.
func (r *Registry) SetClock(fn func() time.Time) {
	r.now = fn
}

// Register creates a breaker for key if one does not exist.
func (r *Registry) Register(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breakers[key]; !ok {
		r.breakers[key] = &breaker{state: Closed, lastStateChange: r.now()}
	}
}

func (r *Registry) get(key string) *breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[key]
}

// CanProceed reports whether a call to the service may be attempted. As a
// side effect it performs the Open -> HalfOpen transition once the reset
// timeout has elapsed. Unknown keys always proceed.
func (r *Registry) CanProceed(key string) bool {
	b := r.get(key)
	if b == nil {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if r.clock().Sub(b.lastStateChange) >= r.resetTimeout() {
			b.state = HalfOpen
			b.successCount = 0
			b.lastStateChange = r.clock()
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call. No-op for unknown keys.
func (r *Registry) RecordSuccess(key string) {
	b := r.get(key)
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= r.successThreshold() {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
			b.lastStateChange = r.clock()
		}
	}
}

// RecordFailure records a failed call. A single failure in HalfOpen re-opens
// the breaker immediately. No-op for unknown keys.
func (r *Registry) RecordFailure(key string) {
	b := r.get(key)
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= r.failureThreshold() {
			b.state = Open
			b.lastStateChange = r.clock()
		}
	case HalfOpen:
		b.state = Open
		b.successCount = 0
		b.lastStateChange = r.clock()
	}
}

// State returns the current state for key without side effects.
func (r *Registry) State(key string) (State, bool) {
	b := r.get(key)
	if b == nil {
		return Closed, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, true
}

// Snapshots returns a view of all breakers for health reporting.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(r.breakers))
	for key, b := range r.breakers {
		b.mu.Lock()
		snaps = append(snaps, Snapshot{
			Key:             key,
			State:           b.state.String(),
			FailureCount:    b.failureCount,
			SuccessCount:    b.successCount,
			LastStateChange: b.lastStateChange,
		})
		b.mu.Unlock()
	}
	return snaps
}

func (r *Registry) clock() time.Time {
	return r.now()
}

func (r *Registry) resetTimeout() time.Duration {
	return r.cfg.ResetTimeout
}

func (r *Registry) successThreshold() int {
	if r.cfg.SuccessThreshold <= 0 {
		return 1
	}
	return r.cfg.SuccessThreshold
}

func (r *Registry) failureThreshold() int {
	if r.cfg.FailureThreshold <= 0 {
		return 1
	}
	return r.cfg.FailureThreshold
}
