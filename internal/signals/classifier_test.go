package signals

import (
	"math"
	"testing"

	"github.com/ternarybob/newsquant/internal/models"
)

func aggregate(sentiment, overall float64, count, pos, neg int) models.StockDailyAggregate {
	return models.StockDailyAggregate{
		StockCode:     "005930",
		Date:          testDay,
		NewsCount:     count,
		ScoredCount:   count,
		AvgSentiment:  models.Float(sentiment),
		AvgOverall:    models.Float(overall),
		PositiveCount: pos,
		NegativeCount: neg,
		PositiveRatio: float64(pos) / float64(count),
		NegativeRatio: float64(neg) / float64(count),
	}
}

func TestClassifier_Classify(t *testing.T) {
	c, err := NewClassifier(OptimizedThresholds())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	adjusted := aggregate(0.5, 0.5, 10, 9, 1)
	adjusted.AdjustedSentiment = models.Float(0.15)

	tests := []struct {
		name     string
		agg      models.StockDailyAggregate
		wantKind models.SignalKind
		wantConf float64
	}{
		{"buy", aggregate(0.5, 0.5, 10, 9, 1), models.SignalBuy, 0.75},
		{"buy confidence capped", aggregate(1.0, 1.0, 12, 12, 0), models.SignalBuy, 1.0},
		{"buy sentiment bound is strict", aggregate(0.30, 0.5, 10, 9, 1), models.SignalHold, 0.3},
		{"buy needs enough news", aggregate(0.5, 0.5, 9, 9, 0), models.SignalHold, 0.3},
		{"sell", aggregate(-0.5, 0.1, 8, 1, 7), models.SignalSell, 0.83},
		{"sell overall bound is strict", aggregate(-0.5, 0.25, 8, 1, 7), models.SignalHold, 0.3},
		{"watch", aggregate(0.05, 0.3, 5, 2, 2), models.SignalWatch, 0.3},
		{"watch needs both sides", aggregate(0.05, 0.3, 5, 2, 0), models.SignalHold, 0.3},
		{"adjusted sentiment is used", adjusted, models.SignalHold, 0.3},
		{"no news", models.StockDailyAggregate{StockCode: "005930"}, models.SignalHold, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.agg)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v (%s)", got.Kind, tt.wantKind, got.Reason)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence %v outside [0, 1]", got.Confidence)
			}
		})
	}
}

func TestClassifier_Reasons(t *testing.T) {
	c, err := NewClassifier(OptimizedThresholds())
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify(models.StockDailyAggregate{}); got.Reason != ReasonNoNews {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonNoNews)
	}

	missing := models.StockDailyAggregate{StockCode: "005930", NewsCount: 3}
	got := c.Classify(missing)
	if got.Kind != models.SignalHold || got.Reason != ReasonInsufficientData || got.Confidence != 0 {
		t.Errorf("Classify(missing means) = %+v", got)
	}
}

func TestClassifier_BuyRequiresPositiveMajority(t *testing.T) {
	c, err := NewClassifier(BaselineThresholds())
	if err != nil {
		t.Fatal(err)
	}

	// Clears every baseline gate except pos > neg
	got := c.Classify(aggregate(0.3, 0.5, 10, 4, 4))
	if got.Kind == models.SignalBuy {
		t.Error("buy emitted with positive count not exceeding negative count")
	}

	got = c.Classify(aggregate(0.3, 0.5, 10, 5, 4))
	if got.Kind != models.SignalBuy {
		t.Errorf("Kind = %v, want buy", got.Kind)
	}
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"zero news count", func(th *Thresholds) { th.Buy.MinNewsCount = 0 }},
		{"ratio above one", func(th *Thresholds) { th.Sell.MinNegativeRatio = 1.5 }},
		{"sell above buy", func(th *Thresholds) { th.Sell.MaxSentiment = 0.4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := OptimizedThresholds()
			tt.mutate(&th)
			if _, err := NewClassifier(th); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestThresholdPreset(t *testing.T) {
	th, err := ThresholdPreset("baseline")
	if err != nil {
		t.Fatal(err)
	}
	if th.Buy.MinSentiment != 0.05 || th.Buy.MinNewsCount != 3 {
		t.Errorf("baseline buy = %+v", th.Buy)
	}
	if _, err := ThresholdPreset("nope"); err == nil {
		t.Error("expected error for unknown preset")
	}
}
