package signals

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ternarybob/newsquant/internal/models"
)

func newTestAggregator(t *testing.T) *DailyAggregator {
	t.Helper()
	a, err := NewDailyAggregator(DefaultAggregatorConfig(), time.UTC)
	if err != nil {
		t.Fatalf("NewDailyAggregator() error = %v", err)
	}
	return a
}

func TestDailyAggregator_Aggregate(t *testing.T) {
	a := newTestAggregator(t)

	sentiments := append(repeat(0.6, 9), -0.2)
	articles := dayArticles("005930", testDay, sentiments, 0.5)
	// Boundary articles on neighbouring days must be excluded
	articles = append(articles,
		scoredArticle("prev", testDay.Add(-time.Second), 1.0, 1.0, "005930"),
		scoredArticle("next", testDay.Add(24*time.Hour), -1.0, 0.0, "005930"),
	)

	agg, ok := a.Aggregate("005930", testDay, articles)
	if !ok {
		t.Fatal("Aggregate() returned no result")
	}

	if agg.NewsCount != 10 {
		t.Errorf("NewsCount = %d, want 10", agg.NewsCount)
	}
	if agg.AvgSentiment == nil || math.Abs(*agg.AvgSentiment-0.52) > 1e-9 {
		t.Errorf("AvgSentiment = %v, want 0.52", agg.AvgSentiment)
	}
	if agg.PositiveCount != 9 || agg.NegativeCount != 1 {
		t.Errorf("counts = (%d, %d), want (9, 1)", agg.PositiveCount, agg.NegativeCount)
	}
	if math.Abs(agg.PositiveRatio-0.9) > 1e-9 {
		t.Errorf("PositiveRatio = %v, want 0.9", agg.PositiveRatio)
	}
	if math.Abs(agg.CompositeScore-0.507) > 1e-9 {
		t.Errorf("CompositeScore = %v, want 0.507", agg.CompositeScore)
	}
	if !agg.Date.Equal(testDay) {
		t.Errorf("Date = %v, want %v", agg.Date, testDay)
	}
}

func TestDailyAggregator_NullScoresExcludedFromMeans(t *testing.T) {
	a := newTestAggregator(t)

	articles := []models.Article{
		scoredArticle("a", testDay.Add(time.Hour), 0.4, 0.6, "000660"),
		{ID: "b", PublishedAt: testDay.Add(2 * time.Hour), RelatedStocks: []string{"000660"}},
	}

	agg, ok := a.Aggregate("000660", testDay, articles)
	if !ok {
		t.Fatal("Aggregate() returned no result")
	}
	if agg.NewsCount != 2 {
		t.Errorf("NewsCount = %d, want 2", agg.NewsCount)
	}
	if agg.AvgSentiment == nil || *agg.AvgSentiment != 0.4 {
		t.Errorf("AvgSentiment = %v, want 0.4", agg.AvgSentiment)
	}
	if agg.PositiveRatio != 0.5 {
		t.Errorf("PositiveRatio = %v, want 0.5", agg.PositiveRatio)
	}
}

func TestDailyAggregator_AllNullScores(t *testing.T) {
	a := newTestAggregator(t)

	articles := []models.Article{
		{ID: "a", PublishedAt: testDay.Add(time.Hour), RelatedStocks: []string{"000660"}},
	}

	agg, ok := a.Aggregate("000660", testDay, articles)
	if !ok {
		t.Fatal("Aggregate() returned no result")
	}
	if agg.AvgSentiment != nil || agg.AvgOverall != nil {
		t.Errorf("means = (%v, %v), want absent", agg.AvgSentiment, agg.AvgOverall)
	}
}

func TestDailyAggregator_NoNews(t *testing.T) {
	a := newTestAggregator(t)

	articles := dayArticles("005930", testDay, repeat(0.5, 3), 0.5)
	if _, ok := a.Aggregate("035720", testDay, articles); ok {
		t.Error("Aggregate() for an unmentioned stock should be absent")
	}
	if _, ok := a.Aggregate("005930", testDay.AddDate(0, 0, 1), articles); ok {
		t.Error("Aggregate() for a day without news should be absent")
	}
}

func TestDailyAggregator_MarketTimezone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	a, err := NewDailyAggregator(DefaultAggregatorConfig(), seoul)
	if err != nil {
		t.Fatal(err)
	}

	// 2026-01-08 20:00 UTC is 2026-01-09 05:00 in Seoul
	articles := []models.Article{
		scoredArticle("a", time.Date(2026, 1, 8, 20, 0, 0, 0, time.UTC), 0.5, 0.5, "005930"),
	}

	if _, ok := a.Aggregate("005930", time.Date(2026, 1, 9, 12, 0, 0, 0, seoul), articles); !ok {
		t.Error("article should fall on the Seoul calendar day")
	}
}

func TestDailyAggregator_AggregateDay(t *testing.T) {
	a := newTestAggregator(t)

	articles := []models.Article{
		scoredArticle("a", testDay.Add(time.Hour), 0.5, 0.5, "035720", "005930"),
		scoredArticle("b", testDay.Add(2*time.Hour), -0.5, 0.2, "005930", "005930"),
		scoredArticle("c", testDay.Add(3*time.Hour), 0.1, 0.1, "INVALID"),
	}

	got := a.AggregateDay(testDay, articles)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].StockCode != "005930" || got[1].StockCode != "035720" {
		t.Errorf("order = [%s %s], want [005930 035720]", got[0].StockCode, got[1].StockCode)
	}
	if got[0].NewsCount != 2 {
		t.Errorf("duplicate code in one article counted twice: NewsCount = %d", got[0].NewsCount)
	}

	again := a.AggregateDay(testDay, articles)
	if !reflect.DeepEqual(got, again) {
		t.Error("AggregateDay() is not deterministic")
	}
}

func TestCompositeWeights_UsesAdjustedSentiment(t *testing.T) {
	w := DefaultCompositeWeights()
	agg := models.StockDailyAggregate{
		NewsCount:         20,
		AvgSentiment:      models.Float(0.8),
		AdjustedSentiment: models.Float(0.2),
		AvgOverall:        models.Float(0.4),
		VolumeSignal:      -0.2,
	}

	want := 0.2*0.35 + 0.4*0.35 + 1.0*0.15 - 0.2*0.15
	if got := w.Composite(agg); math.Abs(got-want) > 1e-9 {
		t.Errorf("Composite() = %v, want %v", got, want)
	}
}

func TestNewDailyAggregator_BadPattern(t *testing.T) {
	cfg := DefaultAggregatorConfig()
	cfg.StockCodePattern = "("
	if _, err := NewDailyAggregator(cfg, time.UTC); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
