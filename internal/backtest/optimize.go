package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

// Params is one grid point. For sells Sentiment and Overall are upper bounds.
type Params struct {
	Sentiment float64 `json:"sentiment"`
	Overall   float64 `json:"overall"`
	NewsCount int     `json:"news_count"`
	Ratio     float64 `json:"ratio"`
}

// ComboResult is one grid point evaluated at one holding period
type ComboResult struct {
	Params            Params       `json:"params"`
	Stats             HorizonStats `json:"stats"`
	DirectionalExcess float64      `json:"directional_excess"`
}

// ComboSummary averages directional excess over a grid point's valid horizons
type ComboSummary struct {
	Params        Params  `json:"params"`
	ValidHorizons int     `json:"valid_horizons"`
	AvgExcess     float64 `json:"avg_excess"`
}

// SideOptimization ranks the grid for one signal direction
type SideOptimization struct {
	Kind      models.SignalKind     `json:"kind"`
	Evaluated int                   `json:"evaluated"`
	Skipped   int                   `json:"skipped"`
	ByHorizon map[int][]ComboResult `json:"by_horizon"`
	Summary   []ComboSummary        `json:"summary"`
}

// OptimizeResult is the grid search outcome. Complete is false when the
// search was cancelled; the rankings then cover the evaluated combinations.
type OptimizeResult struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	SignalDays  int              `json:"signal_days"`
	Complete    bool             `json:"complete"`
	Buy         SideOptimization `json:"buy"`
	Sell        SideOptimization `json:"sell"`
}

type gridPoint struct {
	params Params
	match  func(models.StockDailyAggregate) bool
}

// Optimize evaluates every buy and sell grid combination. Combinations
// are independent, so cancellation between them leaves consistent
// partial results, which are returned along with the context error.
func (r *Runner) Optimize(ctx context.Context, ds *Dataset) (*OptimizeResult, error) {
	result := &OptimizeResult{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now(),
		SignalDays:  len(ds.SignalDays),
	}

	var buyPoints []gridPoint
	for _, b := range r.config.Grid.BuyCombos() {
		buyPoints = append(buyPoints, gridPoint{
			params: Params{Sentiment: b.MinSentiment, Overall: b.MinOverall, NewsCount: b.MinNewsCount, Ratio: b.MinPositiveRatio},
			match:  b.Matches,
		})
	}
	var sellPoints []gridPoint
	for _, s := range r.config.Grid.SellCombos() {
		sellPoints = append(sellPoints, gridPoint{
			params: Params{Sentiment: s.MaxSentiment, Overall: s.MaxOverall, NewsCount: s.MinNewsCount, Ratio: s.MinNegativeRatio},
			match:  s.Matches,
		})
	}

	r.logger.Info().
		Str("run_id", result.RunID).
		Int("buy_combos", len(buyPoints)).
		Int("sell_combos", len(sellPoints)).
		Msg("Starting threshold grid search")

	var err error
	result.Buy, err = r.optimizeSide(ctx, ds, models.SignalBuy, buyPoints, r.config.MinSamplesBuy)
	if err == nil {
		result.Sell, err = r.optimizeSide(ctx, ds, models.SignalSell, sellPoints, r.config.MinSamplesSell)
	} else {
		result.Sell = SideOptimization{Kind: models.SignalSell, ByHorizon: map[int][]ComboResult{}}
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Int("buy_evaluated", result.Buy.Evaluated).
			Int("sell_evaluated", result.Sell.Evaluated).
			Msg("Grid search cancelled, returning partial results")
		return result, err
	}

	result.Complete = true
	r.logger.Info().Str("run_id", result.RunID).Msg("Grid search complete")
	return result, nil
}

func (r *Runner) optimizeSide(ctx context.Context, ds *Dataset, kind models.SignalKind, points []gridPoint, minSamples int) (SideOptimization, error) {
	side := SideOptimization{Kind: kind, ByHorizon: make(map[int][]ComboResult)}
	var summaries []ComboSummary
	var cancelErr error

	for _, p := range points {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		side.Evaluated++

		// every match counts, min samples applies to the combination total
		report := r.evaluate(ds, kind, p.match, 0)
		if report.Signals < minSamples {
			side.Skipped++
			continue
		}
		valid, total := 0, 0.0
		for _, stats := range report.Horizons {
			if stats.Count == 0 {
				continue
			}
			excess := stats.DirectionalExcess(kind)
			side.ByHorizon[stats.HoldingDays] = append(side.ByHorizon[stats.HoldingDays], ComboResult{
				Params:            p.params,
				Stats:             stats,
				DirectionalExcess: excess,
			})
			valid++
			total += excess
		}

		if valid == 0 {
			side.Skipped++
			continue
		}
		if valid >= r.config.MinValidHorizons {
			summaries = append(summaries, ComboSummary{
				Params:        p.params,
				ValidHorizons: valid,
				AvgExcess:     total / float64(valid),
			})
		}
	}

	for h, results := range side.ByHorizon {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].DirectionalExcess > results[j].DirectionalExcess
		})
		if len(results) > r.config.RankLimit {
			results = results[:r.config.RankLimit]
		}
		side.ByHorizon[h] = results
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].AvgExcess > summaries[j].AvgExcess
	})
	if len(summaries) > r.config.RankLimit {
		summaries = summaries[:r.config.RankLimit]
	}
	side.Summary = summaries

	return side, cancelErr
}

// Best returns the thresholds formed by the top buy and sell summaries,
// falling back to base for a side with no qualifying combination.
func (o *OptimizeResult) Best(base signals.Thresholds) signals.Thresholds {
	best := base
	if len(o.Buy.Summary) > 0 {
		p := o.Buy.Summary[0].Params
		best.Buy = signals.BuyThresholds{MinSentiment: p.Sentiment, MinOverall: p.Overall, MinNewsCount: p.NewsCount, MinPositiveRatio: p.Ratio}
	}
	if len(o.Sell.Summary) > 0 {
		p := o.Sell.Summary[0].Params
		best.Sell = signals.SellThresholds{MaxSentiment: p.Sentiment, MaxOverall: p.Overall, MinNewsCount: p.NewsCount, MinNegativeRatio: p.Ratio}
	}
	return best
}
