package models

import "time"

// PriceReaction labels how the price-reaction overlay treated an aggregate
type PriceReaction string

const (
	PriceReactionNone          PriceReaction = "none"
	PriceReactionAlreadyPriced PriceReaction = "already_priced"
	PriceReactionContrarian    PriceReaction = "contrarian"
	PriceReactionUnavailable   PriceReaction = "unavailable"
)

// StockDailyAggregate summarises one stock's news on one calendar day.
// AvgSentiment and AvgOverall are nil when no article carried that score.
type StockDailyAggregate struct {
	StockCode string    `json:"stock_code"`
	Date      time.Time `json:"date"`

	NewsCount      int      `json:"news_count"`
	ScoredCount    int      `json:"scored_count"`
	AvgSentiment   *float64 `json:"avg_sentiment"`
	AvgOverall     *float64 `json:"avg_overall"`
	PositiveCount  int      `json:"positive_count"`
	NegativeCount  int      `json:"negative_count"`
	NeutralCount   int      `json:"neutral_count"`
	PositiveRatio  float64  `json:"positive_ratio"`
	NegativeRatio  float64  `json:"negative_ratio"`
	HighScoreCount int      `json:"high_score_count"`

	// Overlay results
	AdjustedSentiment *float64      `json:"adjusted_sentiment,omitempty"`
	PriceReaction     PriceReaction `json:"price_reaction,omitempty"`
	VolumeSignal      float64       `json:"volume_signal"`
	CompositeScore    float64       `json:"composite_score"`
}

// Sentiment returns the adjusted sentiment when an overlay produced one,
// otherwise the raw daily mean.
func (a StockDailyAggregate) Sentiment() *float64 {
	if a.AdjustedSentiment != nil {
		return a.AdjustedSentiment
	}
	return a.AvgSentiment
}
