package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/newsquant/internal/models"
)

func TestSignalDays_ExcludesLastMaxHolding(t *testing.T) {
	var trading []time.Time
	for d := 1; d <= 15; d++ {
		trading = append(trading, day(d))
	}
	cfg := DefaultConfig()

	got := SignalDays(trading, cfg.MaxHolding())
	assert.Equal(t, 10, cfg.MaxHolding())
	assert.Equal(t, trading[:5], got)
	for _, d := range trading[5:] {
		assert.NotContains(t, got, d)
	}

	assert.Empty(t, SignalDays(trading[:10], 10))
}

func TestTradingDays(t *testing.T) {
	articles := append(news(samsung, 5, 3, 0.1, 0.1), news(samsung, 6, 1, 0.1, 0.1)...)
	articles = append(articles,
		models.Article{ID: "no-codes", PublishedAt: day(6).Add(time.Hour)},
		models.Article{ID: "no-time", RelatedStocks: []string{samsung}},
	)
	articles = append(articles, news(hynix, 4, 2, 0.1, 0.1)...)

	assert.Equal(t, []time.Time{day(4), day(5)}, TradingDays(articles, 2, time.UTC))
	assert.Equal(t, []time.Time{day(5)}, TradingDays(articles, 3, time.UTC))
}

func TestForwardReturns(t *testing.T) {
	bars := []models.PriceBar{bar(5, 100, 100), bar(6, 100, 110), bar(7, 105, 120)}

	tests := []struct {
		name string
		bars []models.PriceBar
		date time.Time
		want map[int]float64
	}{
		{"entry next bar", bars, day(5), map[int]float64{1: 0.10, 2: 0.20}},
		{"horizon beyond data absent", bars, day(6), map[int]float64{1: (120.0 - 105) / 105}},
		{"no bar after date", bars, day(7), nil},
		{"zero open", []models.PriceBar{bar(5, 1, 1), bar(6, 0, 10)}, day(5), nil},
		{"weekend gap", bars, day(4), map[int]float64{1: 0, 2: 0.10, 3: 0.20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForwardReturns(tt.bars, tt.date, []int{1, 2, 3}, time.UTC)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Len(t, got, len(tt.want))
			for h, want := range tt.want {
				assert.InDelta(t, want, got[h], 1e-9, "h=%d", h)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	stats := computeStats(models.SignalSell, 3, []float64{-0.02, 0.01, -0.04, 0.03}, []float64{0.01, 0.01})

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.InDelta(t, -0.005, stats.MeanReturn, 1e-12)
	assert.InDelta(t, -0.005, stats.MedianReturn, 1e-12)
	assert.Equal(t, -0.04, stats.MinReturn)
	assert.Equal(t, 0.03, stats.MaxReturn)
	assert.InDelta(t, -0.015, stats.ExcessReturn, 1e-12)
	assert.InDelta(t, 0.015, stats.DirectionalExcess(models.SignalSell), 1e-12)

	empty := computeStats(models.SignalBuy, 1, nil, nil)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.ExcessReturn)
}

func TestGridCombos(t *testing.T) {
	grid := DefaultGrid()
	assert.Len(t, grid.BuyCombos(), 6*4*4*5)
	assert.Len(t, grid.SellCombos(), 6*5*4*5)
	assert.NoError(t, DefaultConfig().Validate())
}
