// Package analyzer computes aggregate statistics over fetched items. All
// functions are pure: no I/O, no shared state.
package analyzer

import (
	"sort"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// maxPeakTimes bounds how many hour buckets a result reports.
const maxPeakTimes = 5

// ComputePeakTimes buckets items by posting hour (UTC) and returns the
// buckets ranked by mean engagement, best first.
func ComputePeakTimes(items []models.Item) []models.PeakTime {
	type bucket struct {
		count int
		total float64
	}
	hours := make(map[int]*bucket)
	for _, item := range items {
		h := item.PostedAt.UTC().Hour()
		b := hours[h]
		if b == nil {
			b = &bucket{}
			hours[h] = b
		}
		b.count++
		b.total += item.Metrics.EngagementScore()
	}

	peaks := make([]models.PeakTime, 0, len(hours))
	for h, b := range hours {
		peaks = append(peaks, models.PeakTime{
			Hour:          h,
			ItemCount:     b.count,
			AvgEngagement: b.total / float64(b.count),
		})
	}
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].AvgEngagement != peaks[j].AvgEngagement {
			return peaks[i].AvgEngagement > peaks[j].AvgEngagement
		}
		return peaks[i].Hour < peaks[j].Hour
	})

	if len(peaks) > maxPeakTimes {
		peaks = peaks[:maxPeakTimes]
	}
	return peaks
}

// ScoreAndRankTopItems returns the n highest-engagement items, descending.
// Ties keep their input order.
func ScoreAndRankTopItems(items []models.Item, n int) []models.Item {
	if n <= 0 {
		n = 10
	}

	ranked := append([]models.Item(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Metrics.EngagementScore() > ranked[j].Metrics.EngagementScore()
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// ComputeAverageEngagement returns the mean engagement score, zero for an
// empty input.
func ComputeAverageEngagement(items []models.Item) float64 {
	if len(items) == 0 {
		return 0
	}
	var total float64
	for _, item := range items {
		total += item.Metrics.EngagementScore()
	}
	return total / float64(len(items))
}
