package signals

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/newsquant/internal/models"
)

// Reasons for non-actionable signals
const (
	ReasonNoNews           = "no news"
	ReasonInsufficientData = "insufficient data"
)

// BuyThresholds gate the buy signal. Sentiment and overall are strict
// lower bounds; count and ratio are inclusive.
type BuyThresholds struct {
	MinSentiment     float64 `json:"min_sentiment" toml:"min_sentiment" yaml:"min_sentiment" validate:"gte=-1,lte=1"`
	MinOverall       float64 `json:"min_overall" toml:"min_overall" yaml:"min_overall" validate:"gte=-1,lte=1"`
	MinNewsCount     int     `json:"min_news_count" toml:"min_news_count" yaml:"min_news_count" validate:"gte=1"`
	MinPositiveRatio float64 `json:"min_positive_ratio" toml:"min_positive_ratio" yaml:"min_positive_ratio" validate:"gte=0,lte=1"`
}

// Matches reports whether the aggregate clears every buy gate
func (b BuyThresholds) Matches(agg models.StockDailyAggregate) bool {
	s, o := agg.Sentiment(), agg.AvgOverall
	if s == nil || o == nil {
		return false
	}
	return *s > b.MinSentiment &&
		*o > b.MinOverall &&
		agg.NewsCount >= b.MinNewsCount &&
		agg.PositiveRatio >= b.MinPositiveRatio &&
		agg.PositiveCount > agg.NegativeCount
}

// SellThresholds gate the sell signal. Sentiment and overall are strict
// upper bounds; count and ratio are inclusive.
type SellThresholds struct {
	MaxSentiment     float64 `json:"max_sentiment" toml:"max_sentiment" yaml:"max_sentiment" validate:"gte=-1,lte=1"`
	MaxOverall       float64 `json:"max_overall" toml:"max_overall" yaml:"max_overall" validate:"gte=-1,lte=1"`
	MinNewsCount     int     `json:"min_news_count" toml:"min_news_count" yaml:"min_news_count" validate:"gte=1"`
	MinNegativeRatio float64 `json:"min_negative_ratio" toml:"min_negative_ratio" yaml:"min_negative_ratio" validate:"gte=0,lte=1"`
}

// Matches reports whether the aggregate clears every sell gate
func (s SellThresholds) Matches(agg models.StockDailyAggregate) bool {
	sent, o := agg.Sentiment(), agg.AvgOverall
	if sent == nil || o == nil {
		return false
	}
	return *sent < s.MaxSentiment &&
		*o < s.MaxOverall &&
		agg.NewsCount >= s.MinNewsCount &&
		agg.NegativeRatio >= s.MinNegativeRatio &&
		agg.NegativeCount > agg.PositiveCount
}

// WatchThresholds flag mixed, well-covered news for monitoring
type WatchThresholds struct {
	MinNewsCount  int     `json:"min_news_count" toml:"min_news_count" yaml:"min_news_count" validate:"gte=1"`
	SentimentBand float64 `json:"sentiment_band" toml:"sentiment_band" yaml:"sentiment_band" validate:"gte=0,lte=1"`
}

// Matches reports whether coverage is heavy but directionless
func (w WatchThresholds) Matches(agg models.StockDailyAggregate) bool {
	s := agg.Sentiment()
	if s == nil {
		return false
	}
	return agg.NewsCount >= w.MinNewsCount &&
		*s >= -w.SentimentBand && *s <= w.SentimentBand &&
		agg.PositiveCount > 0 && agg.NegativeCount > 0
}

// ConfidenceConfig shapes signal confidence
type ConfidenceConfig struct {
	Base            float64 `json:"base" toml:"base" yaml:"base" validate:"gte=0,lte=1"`
	SentimentWeight float64 `json:"sentiment_weight" toml:"sentiment_weight" yaml:"sentiment_weight" validate:"gte=0,lte=1"`
	OverallWeight   float64 `json:"overall_weight" toml:"overall_weight" yaml:"overall_weight" validate:"gte=0,lte=1"`
	Passive         float64 `json:"passive" toml:"passive" yaml:"passive" validate:"gte=0,lte=1"`
}

// Thresholds is the complete classifier configuration
type Thresholds struct {
	Buy        BuyThresholds    `json:"buy" toml:"buy" yaml:"buy"`
	Sell       SellThresholds   `json:"sell" toml:"sell" yaml:"sell"`
	Watch      WatchThresholds  `json:"watch" toml:"watch" yaml:"watch"`
	Confidence ConfidenceConfig `json:"confidence" toml:"confidence" yaml:"confidence"`
}

// OptimizedThresholds are the grid-search winners
func OptimizedThresholds() Thresholds {
	return Thresholds{
		Buy:        BuyThresholds{MinSentiment: 0.30, MinOverall: 0.3, MinNewsCount: 10, MinPositiveRatio: 0.8},
		Sell:       SellThresholds{MaxSentiment: -0.25, MaxOverall: 0.25, MinNewsCount: 7, MinNegativeRatio: 0.7},
		Watch:      WatchThresholds{MinNewsCount: 3, SentimentBand: 0.1},
		Confidence: defaultConfidence(),
	}
}

// BaselineThresholds are the permissive pre-optimization gates
func BaselineThresholds() Thresholds {
	return Thresholds{
		Buy:        BuyThresholds{MinSentiment: 0.05, MinOverall: 0.3, MinNewsCount: 3, MinPositiveRatio: 0.3},
		Sell:       SellThresholds{MaxSentiment: -0.05, MaxOverall: 0.3, MinNewsCount: 3, MinNegativeRatio: 0.3},
		Watch:      WatchThresholds{MinNewsCount: 3, SentimentBand: 0.1},
		Confidence: defaultConfidence(),
	}
}

func defaultConfidence() ConfidenceConfig {
	return ConfidenceConfig{Base: 0.5, SentimentWeight: 0.3, OverallWeight: 0.2, Passive: 0.3}
}

// ThresholdPreset resolves a named threshold set
func ThresholdPreset(name string) (Thresholds, error) {
	switch strings.ToLower(name) {
	case "", "optimized":
		return OptimizedThresholds(), nil
	case "baseline":
		return BaselineThresholds(), nil
	default:
		return Thresholds{}, fmt.Errorf("unknown threshold preset: %s", name)
	}
}

// Validate checks ranges and cross-field consistency
func (t Thresholds) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	if t.Sell.MaxSentiment >= t.Buy.MinSentiment {
		return fmt.Errorf("invalid thresholds: sell sentiment %.3f must be below buy sentiment %.3f",
			t.Sell.MaxSentiment, t.Buy.MinSentiment)
	}
	return nil
}

// Classifier maps an aggregate to a signal
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier validates thresholds and creates a classifier
func NewClassifier(thresholds Thresholds) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds}, nil
}

// Thresholds returns the classifier's configuration
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify produces the signal for one aggregate
func (c *Classifier) Classify(agg models.StockDailyAggregate) models.Signal {
	signal := models.Signal{
		StockCode: agg.StockCode,
		Date:      agg.Date,
		Kind:      models.SignalHold,
	}

	if agg.NewsCount == 0 {
		signal.Reason = ReasonNoNews
		return signal
	}

	sentiment, overall := agg.Sentiment(), agg.AvgOverall
	if sentiment == nil || overall == nil {
		signal.Reason = ReasonInsufficientData
		return signal
	}

	th := c.thresholds
	conf := th.Confidence
	s, o := *sentiment, *overall

	switch {
	case th.Buy.Matches(agg):
		signal.Kind = models.SignalBuy
		signal.Confidence = clamp(conf.Base+s*conf.SentimentWeight+o*conf.OverallWeight, 0, 1)
		signal.Reason = fmt.Sprintf("positive news dominant: sentiment %.3f, overall %.3f, %d/%d positive",
			s, o, agg.PositiveCount, agg.NewsCount)
	case th.Sell.Matches(agg):
		signal.Kind = models.SignalSell
		signal.Confidence = clamp(conf.Base+abs(s)*conf.SentimentWeight+(1-o)*conf.OverallWeight, 0, 1)
		signal.Reason = fmt.Sprintf("negative news dominant: sentiment %.3f, overall %.3f, %d/%d negative",
			s, o, agg.NegativeCount, agg.NewsCount)
	case th.Watch.Matches(agg):
		signal.Kind = models.SignalWatch
		signal.Confidence = conf.Passive
		signal.Reason = fmt.Sprintf("mixed coverage: %d positive, %d negative across %d articles",
			agg.PositiveCount, agg.NegativeCount, agg.NewsCount)
	default:
		signal.Confidence = conf.Passive
		signal.Reason = fmt.Sprintf("no clear direction: sentiment %.3f, overall %.3f, %d articles",
			s, o, agg.NewsCount)
	}

	signal.Confidence = round(signal.Confidence, 3)
	return signal
}
