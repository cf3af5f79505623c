package models

import (
	"testing"
	"time"
)

func TestScanStatusTerminal(t *testing.T) {
	cases := []struct {
		status ScanStatus
		want   bool
	}{
		{ScanStatusPending, false},
		{ScanStatusInProgress, false},
		{ScanStatusCompleted, true},
		{ScanStatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestScanResultClone(t *testing.T) {
	done := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	orig := &ScanResult{
		ScanID:      "scan-1",
		Status:      ScanStatusCompleted,
		CompletedAt: &done,
		Options: ScanOptions{
			Platforms:     []string{"tiktok"},
			CompetitorIDs: []string{"rival"},
		},
		PeakTimes: []PeakTime{{Hour: 9, ItemCount: 1}},
		TopItems:  []Item{{ID: "p1"}},
	}

	cp := orig.Clone()
	cp.Options.Platforms[0] = "mutated"
	cp.PeakTimes[0].Hour = 23
	cp.TopItems[0].ID = "mutated"
	*cp.CompletedAt = cp.CompletedAt.Add(time.Hour)

	if orig.Options.Platforms[0] != "tiktok" {
		t.Error("Clone must not share the platforms slice")
	}
	if orig.PeakTimes[0].Hour != 9 {
		t.Error("Clone must not share the peak times slice")
	}
	if orig.TopItems[0].ID != "p1" {
		t.Error("Clone must not share the top items slice")
	}
	if !orig.CompletedAt.Equal(done) {
		t.Error("Clone must not share the completion time pointer")
	}
}

func TestEngagementScore(t *testing.T) {
	m := ItemMetrics{Views: 10000, Likes: 100, Comments: 10, Shares: 10, Saves: 4}
	// likes + 2*comments + 3*shares + 2.5*saves; views do not count
	if got := m.EngagementScore(); got != 160 {
		t.Errorf("Expected 160, got %f", got)
	}

	if got := (ItemMetrics{}).EngagementScore(); got != 0 {
		t.Errorf("Expected 0 for empty metrics, got %f", got)
	}
}
