// Package backtest replays daily signals against forward price returns
// and grid-searches classifier thresholds.
package backtest

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/newsquant/internal/signals"
)

// Grid lists the candidate values searched per threshold
type Grid struct {
	BuySentiment  []float64 `json:"buy_sentiment" toml:"buy_sentiment" yaml:"buy_sentiment" validate:"min=1"`
	BuyOverall    []float64 `json:"buy_overall" toml:"buy_overall" yaml:"buy_overall" validate:"min=1"`
	BuyNewsCount  []int     `json:"buy_news_count" toml:"buy_news_count" yaml:"buy_news_count" validate:"min=1,dive,gte=1"`
	BuyRatio      []float64 `json:"buy_ratio" toml:"buy_ratio" yaml:"buy_ratio" validate:"min=1"`
	SellSentiment []float64 `json:"sell_sentiment" toml:"sell_sentiment" yaml:"sell_sentiment" validate:"min=1"`
	SellOverall   []float64 `json:"sell_overall" toml:"sell_overall" yaml:"sell_overall" validate:"min=1"`
	SellNewsCount []int     `json:"sell_news_count" toml:"sell_news_count" yaml:"sell_news_count" validate:"min=1,dive,gte=1"`
	SellRatio     []float64 `json:"sell_ratio" toml:"sell_ratio" yaml:"sell_ratio" validate:"min=1"`
}

// DefaultGrid returns the standard search space
func DefaultGrid() Grid {
	return Grid{
		BuySentiment:  []float64{0.05, 0.10, 0.15, 0.20, 0.25, 0.30},
		BuyOverall:    []float64{0.3, 0.4, 0.5, 0.6},
		BuyNewsCount:  []int{3, 5, 7, 10},
		BuyRatio:      []float64{0.3, 0.5, 0.6, 0.7, 0.8},
		SellSentiment: []float64{-0.05, -0.10, -0.15, -0.20, -0.25, -0.30},
		SellOverall:   []float64{0.3, 0.25, 0.2, 0.15, 0.1},
		SellNewsCount: []int{3, 5, 7, 10},
		SellRatio:     []float64{0.3, 0.5, 0.6, 0.7, 0.8},
	}
}

// BuyCombos expands the buy grid in declaration order
func (g Grid) BuyCombos() []signals.BuyThresholds {
	var out []signals.BuyThresholds
	for _, s := range g.BuySentiment {
		for _, o := range g.BuyOverall {
			for _, n := range g.BuyNewsCount {
				for _, r := range g.BuyRatio {
					out = append(out, signals.BuyThresholds{MinSentiment: s, MinOverall: o, MinNewsCount: n, MinPositiveRatio: r})
				}
			}
		}
	}
	return out
}

// SellCombos expands the sell grid in declaration order
func (g Grid) SellCombos() []signals.SellThresholds {
	var out []signals.SellThresholds
	for _, s := range g.SellSentiment {
		for _, o := range g.SellOverall {
			for _, n := range g.SellNewsCount {
				for _, r := range g.SellRatio {
					out = append(out, signals.SellThresholds{MaxSentiment: s, MaxOverall: o, MinNewsCount: n, MinNegativeRatio: r})
				}
			}
		}
	}
	return out
}

// Config controls backtest sampling and the optimizer
type Config struct {
	HoldingDays      []int `json:"holding_days" toml:"holding_days" yaml:"holding_days" validate:"min=1,dive,gte=1"`
	MinDailyNews     int   `json:"min_daily_news" toml:"min_daily_news" yaml:"min_daily_news" validate:"gte=1"`
	TopN             int   `json:"top_n" toml:"top_n" yaml:"top_n" validate:"gte=1"`
	MinSamplesBuy    int   `json:"min_samples_buy" toml:"min_samples_buy" yaml:"min_samples_buy" validate:"gte=1"`
	MinSamplesSell   int   `json:"min_samples_sell" toml:"min_samples_sell" yaml:"min_samples_sell" validate:"gte=1"`
	MinValidHorizons int   `json:"min_valid_horizons" toml:"min_valid_horizons" yaml:"min_valid_horizons" validate:"gte=1"`
	MaxStocks        int   `json:"max_stocks" toml:"max_stocks" yaml:"max_stocks" validate:"gte=0"`
	RankLimit        int   `json:"rank_limit" toml:"rank_limit" yaml:"rank_limit" validate:"gte=1"`
	Grid             Grid  `json:"grid" toml:"grid" yaml:"grid"`
}

// DefaultConfig returns the standard backtest settings
func DefaultConfig() Config {
	return Config{
		HoldingDays:      []int{1, 3, 5, 7, 10},
		MinDailyNews:     10,
		TopN:             10,
		MinSamplesBuy:    10,
		MinSamplesSell:   5,
		MinValidHorizons: 3,
		MaxStocks:        300,
		RankLimit:        10,
		Grid:             DefaultGrid(),
	}
}

// Validate checks ranges
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid backtest config: %w", err)
	}
	if c.MinValidHorizons > len(c.HoldingDays) {
		return fmt.Errorf("invalid backtest config: min_valid_horizons %d exceeds %d holding periods",
			c.MinValidHorizons, len(c.HoldingDays))
	}
	return nil
}

// MaxHolding returns the longest holding period
func (c Config) MaxHolding() int {
	if len(c.HoldingDays) == 0 {
		return 0
	}
	return slices.Max(c.HoldingDays)
}

// horizons returns the holding periods sorted and deduplicated
func (c Config) horizons() []int {
	out := slices.Clone(c.HoldingDays)
	slices.Sort(out)
	return slices.Compact(out)
}
