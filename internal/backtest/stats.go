package backtest

import (
	"sort"

	"github.com/ternarybob/newsquant/internal/models"
)

// HorizonStats summarises the returns of one side at one holding period.
// Returns are fractions, so 0.012 is 1.2%.
type HorizonStats struct {
	HoldingDays     int     `json:"holding_days"`
	Count           int     `json:"count"`
	HitRate         float64 `json:"hit_rate"`
	MeanReturn      float64 `json:"mean_return"`
	MedianReturn    float64 `json:"median_return"`
	MinReturn       float64 `json:"min_return"`
	MaxReturn       float64 `json:"max_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	BenchmarkCount  int     `json:"benchmark_count"`
	ExcessReturn    float64 `json:"excess_return"`
}

// DirectionalExcess is the excess return in the direction of the signal:
// sells profit when the stock underperforms.
func (s HorizonStats) DirectionalExcess(kind models.SignalKind) float64 {
	if kind == models.SignalSell {
		return -s.ExcessReturn
	}
	return s.ExcessReturn
}

func computeStats(kind models.SignalKind, holding int, returns, benchmark []float64) HorizonStats {
	stats := HorizonStats{
		HoldingDays:    holding,
		Count:          len(returns),
		BenchmarkCount: len(benchmark),
	}
	if len(benchmark) > 0 {
		stats.BenchmarkReturn = mean(benchmark)
	}
	if len(returns) == 0 {
		return stats
	}

	hits := 0
	stats.MinReturn, stats.MaxReturn = returns[0], returns[0]
	for _, r := range returns {
		if (kind == models.SignalBuy && r > 0) || (kind == models.SignalSell && r < 0) {
			hits++
		}
		stats.MinReturn = min(stats.MinReturn, r)
		stats.MaxReturn = max(stats.MaxReturn, r)
	}

	stats.HitRate = float64(hits) / float64(len(returns))
	stats.MeanReturn = mean(returns)
	stats.MedianReturn = median(returns)
	stats.ExcessReturn = stats.MeanReturn - stats.BenchmarkReturn
	return stats
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
