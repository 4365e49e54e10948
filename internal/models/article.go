package models

import (
	"slices"
	"time"
)

// Article is a scored news item tied to zero or more stock codes.
// Nullable scores are nil when the upstream scorer produced no value.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	URL           string    `json:"url,omitempty"`
	PublishedAt   time.Time `json:"published_at"` // zero when the source carried no timestamp
	Source        string    `json:"source"`
	Category      string    `json:"category"`
	RelatedStocks []string  `json:"related_stocks"`

	SentimentScore  *float64 `json:"sentiment_score"`
	ImportanceScore float64  `json:"importance_score"`
	ImpactScore     float64  `json:"impact_score"`
	TimelinessScore float64  `json:"timeliness_score"`
	OverallScore    *float64 `json:"overall_score"`
}

// HasTimestamp reports whether the article carries a publication time
func (a Article) HasTimestamp() bool {
	return !a.PublishedAt.IsZero()
}

// Mentions reports whether code is among the related stocks
func (a Article) Mentions(code string) bool {
	return slices.Contains(a.RelatedStocks, code)
}

// ArticleFilter narrows an article query. Zero values mean "no constraint".
type ArticleFilter struct {
	From      time.Time
	To        time.Time
	StockCode string
	Source    string
	Limit     int
}

// Float returns a pointer to v, for populating nullable scores.
func Float(v float64) *float64 {
	return &v
}
