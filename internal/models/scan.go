package models

import (
	"time"
)

// ScanStatus is the lifecycle state of a scan.
// Transitions: pending -> in_progress -> completed | failed.
// Terminal states are final; a scan is never resumed or retried as a whole.
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusInProgress ScanStatus = "in_progress"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// ScanOptions controls what a single scan fetches.
type ScanOptions struct {
	Platforms       []string `json:"platforms"`
	LookbackDays    int      `json:"lookback_days"`
	CompetitorIDs   []string `json:"competitor_ids,omitempty"`
	IncludeOwnPosts bool     `json:"include_own_posts"`
	TopN            int      `json:"top_n,omitempty"`
}

// ScanResult is the record a caller polls for. It is created in pending by
// StartScan, mutated only by the orchestrator goroutine that owns the scan,
// and reaped once older than the retention horizon.
type ScanResult struct {
	ScanID            string      `json:"scan_id"`
	UserID            string      `json:"user_id"`
	Status            ScanStatus  `json:"status"`
	Options           ScanOptions `json:"options"`
	CreatedAt         time.Time   `json:"created_at"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	Error             string      `json:"error,omitempty"`
	TotalItems        int         `json:"total_items"`
	AverageEngagement float64     `json:"average_engagement"`
	PeakTimes         []PeakTime  `json:"peak_times,omitempty"`
	TopItems          []Item      `json:"top_items,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to callers while the
// orchestrator may still mutate the original.
func (r *ScanResult) Clone() *ScanResult {
	cp := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.PeakTimes = append([]PeakTime(nil), r.PeakTimes...)
	cp.TopItems = append([]Item(nil), r.TopItems...)
	cp.Options.Platforms = append([]string(nil), r.Options.Platforms...)
	cp.Options.CompetitorIDs = append([]string(nil), r.Options.CompetitorIDs...)
	return &cp
}
