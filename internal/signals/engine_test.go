package signals

import (
	"math"
	"testing"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

func newTestEngine(t *testing.T, mutate func(*EngineConfig)) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := NewEngine(cfg, time.UTC)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func engineFixture() []models.Article {
	var articles []models.Article
	articles = append(articles, dayArticles("005930", testDay, append(repeat(0.6, 11), -0.1), 0.6)...)
	articles = append(articles, dayArticles("000660", testDay, append(repeat(0.4, 10), -0.1), 0.4)...)
	articles = append(articles, dayArticles("035720", testDay, append(repeat(-0.6, 7), 0.2), 0.1)...)
	articles = append(articles, dayArticles("051910", testDay, []float64{0.2, -0.2, 0.05}, 0.3)...)
	return articles
}

func TestEngine_AnalyzeDay(t *testing.T) {
	e := newTestEngine(t, nil)
	articles := engineFixture()

	day := e.AnalyzeDay(testDay, articles, e.NewVolumeHistory(articles), nil)
	if len(day.Evaluations) != 4 {
		t.Fatalf("len(Evaluations) = %d, want 4", len(day.Evaluations))
	}

	buys := day.BuyCandidates(0)
	if len(buys) != 2 {
		t.Fatalf("len(BuyCandidates) = %d, want 2", len(buys))
	}
	if buys[0].Aggregate.StockCode != "005930" {
		t.Errorf("top buy = %s, want 005930", buys[0].Aggregate.StockCode)
	}
	if got := day.BuyCandidates(1); len(got) != 1 {
		t.Errorf("BuyCandidates(1) returned %d entries", len(got))
	}

	sells := day.SellCandidates(0)
	if len(sells) != 1 || sells[0].Aggregate.StockCode != "035720" {
		t.Errorf("SellCandidates() = %+v", sells)
	}

	watch := day.WatchCandidates(0)
	if len(watch) != 1 || watch[0].Aggregate.StockCode != "051910" {
		t.Errorf("WatchCandidates() = %+v", watch)
	}
}

func TestEngine_PriceOverlay(t *testing.T) {
	e := newTestEngine(t, nil)
	articles := engineFixture()

	// 005930 already rallied 10% into the signal day
	prices := staticPrices{
		"005930": priceBars(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 100, 104, 107, 110),
	}

	day := e.AnalyzeDay(testDay, articles, nil, prices)

	ev, ok := day.Lookup("005930")
	if !ok {
		t.Fatal("005930 missing from analysis")
	}
	if ev.Aggregate.PriceReaction != models.PriceReactionAlreadyPriced {
		t.Errorf("PriceReaction = %v, want already_priced", ev.Aggregate.PriceReaction)
	}
	want := *ev.Aggregate.AvgSentiment * 0.3
	if ev.Aggregate.AdjustedSentiment == nil || math.Abs(*ev.Aggregate.AdjustedSentiment-want) > 1e-9 {
		t.Errorf("AdjustedSentiment = %v, want %v", ev.Aggregate.AdjustedSentiment, want)
	}
	if ev.Signal.Kind == models.SignalBuy {
		t.Error("already-priced news should no longer clear the buy gate")
	}

	other, _ := day.Lookup("000660")
	if other.Aggregate.PriceReaction != models.PriceReactionUnavailable {
		t.Errorf("PriceReaction without bars = %v, want unavailable", other.Aggregate.PriceReaction)
	}
	if other.Aggregate.AdjustedSentiment != nil {
		t.Error("unavailable prices must not produce an adjusted sentiment")
	}
}

func TestEngine_OverlaysDisabled(t *testing.T) {
	e := newTestEngine(t, func(c *EngineConfig) {
		c.PriceOverlay = false
		c.VolumeOverlay = false
	})
	articles := engineFixture()
	prices := staticPrices{
		"005930": priceBars(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), 100, 104, 107, 110),
	}

	day := e.AnalyzeDay(testDay, articles, e.NewVolumeHistory(articles), prices)
	ev, _ := day.Lookup("005930")
	if ev.Aggregate.AdjustedSentiment != nil || ev.Aggregate.VolumeSignal != 0 {
		t.Errorf("overlays applied while disabled: %+v", ev.Aggregate)
	}
	if ev.Signal.Kind != models.SignalBuy {
		t.Errorf("Kind = %v, want buy", ev.Signal.Kind)
	}
}

func TestEngine_AnalyzeStockWithoutNews(t *testing.T) {
	e := newTestEngine(t, nil)

	ev := e.AnalyzeStock("999999", testDay, engineFixture(), nil, nil)
	if ev.Signal.Kind != models.SignalHold || ev.Signal.Reason != ReasonNoNews || ev.Signal.Confidence != 0 {
		t.Errorf("Signal = %+v, want hold/no news/0", ev.Signal)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Volume.WindowDays = 0
	if _, err := NewEngine(cfg, time.UTC); err == nil {
		t.Error("expected error for zero volume window")
	}

	cfg = DefaultEngineConfig()
	cfg.Thresholds.Buy.MinNewsCount = 0
	if _, err := NewEngine(cfg, time.UTC); err == nil {
		t.Error("expected error for invalid thresholds")
	}
}
