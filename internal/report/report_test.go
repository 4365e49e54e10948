package report

import (
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/newsquant/internal/backtest"
	"github.com/ternarybob/newsquant/internal/models"
	"github.com/ternarybob/newsquant/internal/signals"
)

func TestDailySignals(t *testing.T) {
	analysis := signals.DayAnalysis{
		Date: time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC),
		Evaluations: []signals.Evaluation{
			{
				Aggregate: models.StockDailyAggregate{
					StockCode: "005930", NewsCount: 10, PositiveCount: 9, NegativeCount: 1,
					AvgSentiment: models.Float(0.52), AvgOverall: models.Float(0.5),
					PriceReaction: models.PriceReactionNone, CompositeScore: 0.5,
				},
				Signal: models.Signal{StockCode: "005930", Kind: models.SignalBuy, Confidence: 0.756, Reason: "sentiment 0.52 | ratio 0.90"},
			},
		},
	}

	md := DailySignals(analysis, 10)
	for _, want := range []string{
		"# Signals for 2026-01-09",
		"## Buy candidates",
		"| 005930 | 10 | +0.520 | +0.500 | 9/1 | none |",
		`sentiment 0.52 \| ratio 0.90`,
		"## Sell candidates\n\nNone.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("DailySignals() missing %q\n%s", want, md)
		}
	}
}

func TestBacktest(t *testing.T) {
	r := &backtest.Report{
		RunID:       "run-1",
		TradingDays: 20,
		SignalDays:  10,
		From:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Thresholds:  signals.OptimizedThresholds(),
		Buy: backtest.SideReport{Kind: models.SignalBuy, Signals: 12, Horizons: []backtest.HorizonStats{
			{HoldingDays: 1, Count: 12, HitRate: 0.5833, MeanReturn: 0.012, MedianReturn: 0.01, MinReturn: -0.03, MaxReturn: 0.05, BenchmarkReturn: 0.002, ExcessReturn: 0.01},
			{HoldingDays: 3, BenchmarkReturn: 0.004},
		}},
		Sell: backtest.SideReport{Kind: models.SignalSell},
	}

	md := Backtest(r)
	for _, want := range []string{
		"- Run: `run-1`",
		"- Signal days: 10 (2026-01-05 to 2026-01-16)",
		"sentiment > 0.30",
		"## Buy signals (12)",
		"| 1d | 12 | 58.3% | +1.20% | +1.00% | -3.00% | +5.00% | +0.20% | +1.00% |",
		"| 3d | 0 | - | - | - | - | - | +0.40% | - |",
		"## Sell signals (0)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Backtest() missing %q\n%s", want, md)
		}
	}
}

func TestOptimization(t *testing.T) {
	o := &backtest.OptimizeResult{
		RunID:      "grid-1",
		SignalDays: 30,
		Buy: backtest.SideOptimization{
			Kind:      models.SignalBuy,
			Evaluated: 2,
			Skipped:   1,
			ByHorizon: map[int][]backtest.ComboResult{
				5: {{Params: backtest.Params{Sentiment: 0.3, Overall: 0.3, NewsCount: 10, Ratio: 0.8}, Stats: backtest.HorizonStats{HoldingDays: 5, Count: 14, HitRate: 0.64, MeanReturn: 0.021}, DirectionalExcess: 0.015}},
			},
			Summary: []backtest.ComboSummary{{Params: backtest.Params{Sentiment: 0.3, Overall: 0.3, NewsCount: 10, Ratio: 0.8}, ValidHorizons: 4, AvgExcess: 0.011}},
		},
		Sell: backtest.SideOptimization{Kind: models.SignalSell, ByHorizon: map[int][]backtest.ComboResult{}},
	}

	md := Optimization(o)
	for _, want := range []string{
		"- Status: **cancelled**",
		"## Buy (2 evaluated, 1 without samples)",
		"| 1 | 0.30 | 0.30 | 10 | 0.80 | 4 | +1.10% |",
		"### 5-day hold",
		"| 1 | 0.30 | 0.30 | 10 | 0.80 | 14 | 64.0% | +2.10% | +1.50% |",
		"No combination had enough valid horizons.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Optimization() missing %q\n%s", want, md)
		}
	}
}

func TestHTML(t *testing.T) {
	page, err := HTML("Signals <today>", "# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{"<title>Signals &lt;today&gt;</title>", "<h1>Title</h1>", "<table>", "<td>1</td>"} {
		if !strings.Contains(page, want) {
			t.Errorf("HTML() missing %q\n%s", want, page)
		}
	}
}
