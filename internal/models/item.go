package models

import "time"

// Item represents a single post fetched from a platform, together with the
// engagement metrics reported by the source API at fetch time.
type Item struct {
	ID           string      `json:"id"`
	Platform     string      `json:"platform"`
	AuthorID     string      `json:"author_id"`
	URL          string      `json:"url,omitempty"`
	Caption      string      `json:"caption,omitempty"`
	MediaType    string      `json:"media_type,omitempty"` // video, image, carousel, text
	PostedAt     time.Time   `json:"posted_at"`
	Metrics      ItemMetrics `json:"metrics"`
	IsCompetitor bool        `json:"is_competitor"`
}

// ItemMetrics holds the raw engagement counters for an item.
type ItemMetrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Saves    int64 `json:"saves"`
}

// EngagementScore is the effective engagement used for ranking. Comments,
// shares and saves weigh more than likes because they cost the viewer more.
func (m ItemMetrics) EngagementScore() float64 {
	return float64(m.Likes) + 2*float64(m.Comments) + 3*float64(m.Shares) + 2.5*float64(m.Saves)
}

// PeakTime is one hour-of-day bucket ranked by mean engagement.
type PeakTime struct {
	Hour          int     `json:"hour"` // 0-23, UTC
	ItemCount     int     `json:"item_count"`
	AvgEngagement float64 `json:"avg_engagement"`
}
