package prices

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/newsquant/internal/interfaces"
	"github.com/ternarybob/newsquant/internal/models"
)

// SnapshotProvider wraps a provider with a persistent as-of snapshot.
// Bars for a given (provider, code, as-of date) are fetched once and
// served from storage afterwards, so reruns see identical history.
type SnapshotProvider struct {
	inner   interfaces.PriceProvider
	storage interfaces.PriceSnapshotStorage
	logger  arbor.ILogger
}

// NewSnapshotProvider decorates inner with snapshot storage
func NewSnapshotProvider(inner interfaces.PriceProvider, storage interfaces.PriceSnapshotStorage, logger arbor.ILogger) *SnapshotProvider {
	return &SnapshotProvider{inner: inner, storage: storage, logger: logger}
}

// Name returns the wrapped provider name
func (p *SnapshotProvider) Name() string {
	return p.inner.Name()
}

// GetDailyPrices returns stored bars when present, otherwise fetches and stores them
func (p *SnapshotProvider) GetDailyPrices(ctx context.Context, code string, window models.LookbackWindow) ([]models.PriceBar, error) {
	asOf := models.DayKey(window.To, window.To.Location())

	bars, ok, err := p.storage.LoadSnapshot(ctx, p.inner.Name(), code, asOf)
	if err != nil {
		p.logger.Warn().Str("code", code).Err(err).Msg("Failed to read price snapshot")
	} else if ok {
		return filterWindow(bars, window), nil
	}

	bars, err = p.inner.GetDailyPrices(ctx, code, window)
	if err != nil {
		return nil, err
	}

	if err := p.storage.SaveSnapshot(ctx, p.inner.Name(), code, asOf, bars); err != nil {
		p.logger.Warn().Str("code", code).Err(err).Msg("Failed to write price snapshot")
	}
	return bars, nil
}

func filterWindow(bars []models.PriceBar, window models.LookbackWindow) []models.PriceBar {
	out := make([]models.PriceBar, 0, len(bars))
	for _, b := range bars {
		if window.Contains(b.Date) {
			out = append(out, b)
		}
	}
	return out
}
