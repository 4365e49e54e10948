package signals

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

// AggregatorConfig holds configuration for daily aggregation
type AggregatorConfig struct {
	StockCodePattern   string           `json:"stock_code_pattern" toml:"stock_code_pattern" yaml:"stock_code_pattern"`
	HighScoreThreshold float64          `json:"high_score_threshold" toml:"high_score_threshold" yaml:"high_score_threshold" validate:"gte=0,lte=1"`
	Weights            CompositeWeights `json:"weights" toml:"weights" yaml:"weights"`
}

// DefaultAggregatorConfig returns default aggregation configuration
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		StockCodePattern:   `^\d{6}$`,
		HighScoreThreshold: 0.7,
		Weights:            DefaultCompositeWeights(),
	}
}

// DailyAggregator groups scored articles by stock and calendar day
type DailyAggregator struct {
	config      AggregatorConfig
	loc         *time.Location
	codePattern *regexp.Regexp
}

// NewDailyAggregator creates an aggregator. Calendar days are evaluated in loc.
func NewDailyAggregator(config AggregatorConfig, loc *time.Location) (*DailyAggregator, error) {
	if loc == nil {
		loc = time.UTC
	}
	var pattern *regexp.Regexp
	if config.StockCodePattern != "" {
		p, err := regexp.Compile(config.StockCodePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid stock code pattern %q: %w", config.StockCodePattern, err)
		}
		pattern = p
	}
	return &DailyAggregator{config: config, loc: loc, codePattern: pattern}, nil
}

// Location returns the market location used for calendar days
func (a *DailyAggregator) Location() *time.Location {
	return a.loc
}

// ValidCode reports whether a stock code passes the configured pattern
func (a *DailyAggregator) ValidCode(code string) bool {
	if code == "" {
		return false
	}
	return a.codePattern == nil || a.codePattern.MatchString(code)
}

// accumulator collects one stock's figures for one day
type accumulator struct {
	newsCount      int
	sentimentSum   float64
	sentimentN     int
	overallSum     float64
	overallN       int
	positive       int
	negative       int
	neutral        int
	highScoreCount int
}

func (acc *accumulator) add(article models.Article, highScore float64) {
	acc.newsCount++
	if s := article.SentimentScore; s != nil {
		acc.sentimentSum += *s
		acc.sentimentN++
		switch {
		case *s > 0:
			acc.positive++
		case *s < 0:
			acc.negative++
		default:
			acc.neutral++
		}
	}
	if o := article.OverallScore; o != nil {
		acc.overallSum += *o
		acc.overallN++
		if *o >= highScore {
			acc.highScoreCount++
		}
	}
}

func (a *DailyAggregator) build(code string, day time.Time, acc *accumulator) models.StockDailyAggregate {
	agg := models.StockDailyAggregate{
		StockCode:      code,
		Date:           day,
		NewsCount:      acc.newsCount,
		ScoredCount:    acc.sentimentN,
		PositiveCount:  acc.positive,
		NegativeCount:  acc.negative,
		NeutralCount:   acc.neutral,
		HighScoreCount: acc.highScoreCount,
		PriceReaction:  models.PriceReactionNone,
	}
	if acc.sentimentN > 0 {
		agg.AvgSentiment = models.Float(acc.sentimentSum / float64(acc.sentimentN))
	}
	if acc.overallN > 0 {
		agg.AvgOverall = models.Float(acc.overallSum / float64(acc.overallN))
	}
	if acc.newsCount > 0 {
		agg.PositiveRatio = float64(acc.positive) / float64(acc.newsCount)
		agg.NegativeRatio = float64(acc.negative) / float64(acc.newsCount)
	}
	agg.CompositeScore = a.config.Weights.Composite(agg)
	return agg
}

// onDay reports whether the article was published on the given calendar day
func (a *DailyAggregator) onDay(article models.Article, day time.Time) bool {
	if !article.HasTimestamp() {
		return false
	}
	return models.CalendarDay(article.PublishedAt, a.loc).Equal(day)
}

// Aggregate summarises one stock's articles on one calendar day.
// The second return value is false when the stock had no news that day.
func (a *DailyAggregator) Aggregate(code string, date time.Time, articles []models.Article) (models.StockDailyAggregate, bool) {
	day := models.CalendarDay(date, a.loc)
	acc := &accumulator{}
	for _, article := range articles {
		if !a.onDay(article, day) || !article.Mentions(code) {
			continue
		}
		acc.add(article, a.config.HighScoreThreshold)
	}
	if acc.newsCount == 0 {
		return models.StockDailyAggregate{}, false
	}
	return a.build(code, day, acc), true
}

// AggregateDay summarises every valid stock mentioned on the given day,
// ordered by stock code.
func (a *DailyAggregator) AggregateDay(date time.Time, articles []models.Article) []models.StockDailyAggregate {
	day := models.CalendarDay(date, a.loc)
	byCode := make(map[string]*accumulator)

	for _, article := range articles {
		if !a.onDay(article, day) {
			continue
		}
		seen := make(map[string]bool, len(article.RelatedStocks))
		for _, code := range article.RelatedStocks {
			if seen[code] || !a.ValidCode(code) {
				continue
			}
			seen[code] = true
			acc, ok := byCode[code]
			if !ok {
				acc = &accumulator{}
				byCode[code] = acc
			}
			acc.add(article, a.config.HighScoreThreshold)
		}
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	result := make([]models.StockDailyAggregate, 0, len(codes))
	for _, code := range codes {
		result = append(result, a.build(code, day, byCode[code]))
	}
	return result
}

// Recompose recomputes the composite score after overlays have changed
// the adjusted sentiment or volume signal.
func (a *DailyAggregator) Recompose(agg *models.StockDailyAggregate) {
	agg.CompositeScore = a.config.Weights.Composite(*agg)
}
